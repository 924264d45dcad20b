package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/cas"
	"github.com/resourcex/resourcex/detect"
	"github.com/resourcex/resourcex/discovery"
	"github.com/resourcex/resourcex/link"
	"github.com/resourcex/resourcex/store/blob"
	"github.com/resourcex/resourcex/store/manifest"
	"github.com/resourcex/resourcex/storagedriver/inmemory"
)

// rewriteTransport redirects every outbound request to target, so a test
// can point the discoverer's https://domain/.well-known/resourcex request
// at a local httptest server.
type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected, err := http.NewRequest(req.Method, t.target+req.URL.Path, req.Body)
	if err != nil {
		return nil, err
	}
	redirected.Header = req.Header
	return http.DefaultTransport.RoundTrip(redirected)
}

func newPipeline() *Pipeline {
	return &Pipeline{
		CAS:        cas.New(blob.New(inmemory.New()), manifest.New(inmemory.New())),
		Links:      link.New(),
		Loaders:    detect.LoaderChain{detect.FolderLoader{}},
		Detectors:  detect.DetectorChain{detect.ManifestDetector{}, detect.SkillDetector{}},
		Discoverer: discovery.New(http.DefaultClient),
	}
}

func TestResolveLocalhostShortCircuits(t *testing.T) {
	p := newPipeline()
	_, err := p.Get(context.Background(), "localhost/hello")
	if resourcex.KindOf(err) != resourcex.KindResourceNotFound {
		t.Errorf("kind = %v, want ResourceNotFound", resourcex.KindOf(err))
	}
}

func TestResolveLocalCASHit(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	files := map[string][]byte{"a": []byte("content")}
	packed, err := archive.Pack(files)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	if err := p.CAS.Put(ctx, resourcex.Resource{
		Identifier: id,
		Manifest:   resourcex.Manifest{Definition: resourcex.Definition{Name: "hello", Tag: "1.0.0", Type: "skill"}},
		Archive:    packed,
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	res, err := p.Get(ctx, "hello:1.0.0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Identifier.Name != "hello" {
		t.Errorf("Get = %+v", res.Identifier)
	}
}

func manifestAndContentServer(t *testing.T, def resourcex.Definition, files map[string][]byte) *httptest.Server {
	t.Helper()
	packed, err := archive.Pack(files)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/resource/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(def)
	})
	mux.HandleFunc("/api/v1/content/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(packed)
	})
	return httptest.NewServer(mux)
}

func TestResolveViaMirror(t *testing.T) {
	def := resourcex.Definition{Name: "hello", Tag: "1.0.0", Type: "skill"}
	files := map[string][]byte{"a": []byte("content")}
	srv := manifestAndContentServer(t, def, files)
	defer srv.Close()

	p := newPipeline()
	p.Mirror = srv.URL + "/api/v1"

	res, err := p.Get(context.Background(), "example.com/hello:1.0.0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Identifier.Name != "hello" {
		t.Errorf("Get = %+v", res.Identifier)
	}

	has, err := p.CAS.Has(context.Background(), resourcex.Identifier{Registry: "example.com", Name: "hello", Tag: "1.0.0"})
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Error("expected write-back to local CAS after mirror fetch")
	}
}

func TestResolveMirror404FallsThroughToOrigin(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found", "code": "RESOURCE_NOT_FOUND"})
	}))
	defer mirror.Close()

	def := resourcex.Definition{Name: "hello", Tag: "1.0.0", Type: "skill"}
	files := map[string][]byte{"a": []byte("content")}
	origin := manifestAndContentServer(t, def, files)
	defer origin.Close()

	wellKnown := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"registries": []string{origin.URL + "/api/v1"}})
	}))
	defer wellKnown.Close()

	p := newPipeline()
	p.Mirror = mirror.URL
	p.Discoverer = discovery.New(&http.Client{Transport: rewriteTransport{target: wellKnown.URL}})

	res, err := p.Get(context.Background(), "example.com/hello:1.0.0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Identifier.Name != "hello" {
		t.Errorf("Get = %+v", res.Identifier)
	}
}

func TestResolveLinkIndexHotReload(t *testing.T) {
	p := newPipeline()
	dir := t.TempDir() + "/greeter"
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeSkill(t, dir)

	id := resourcex.Identifier{Name: "greeter", Tag: "latest"}
	p.Links.Link(id, dir)

	res, err := p.resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Identifier.Name != "greeter" {
		t.Errorf("resolve = %+v", res.Identifier)
	}

	has, err := p.CAS.Has(context.Background(), id)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Error("link-index hits must not write back to the CAS")
	}
}

func writeSkill(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(dir+"/SKILL.md", []byte("# greeter"), 0o644); err != nil {
		t.Fatalf("write SKILL.md: %v", err)
	}
}
