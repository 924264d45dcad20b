package rxclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resourcex/resourcex"
)

func TestFetchManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resource/hello:1.0.0" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(resourcex.Definition{Name: "hello", Tag: "1.0.0", Type: "skill"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	def, err := c.FetchManifest(context.Background(), resourcex.Identifier{Name: "hello", Tag: "1.0.0"})
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if def.Name != "hello" || def.Type != "skill" {
		t.Errorf("FetchManifest = %+v", def)
	}
}

func TestFetchManifestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found", "code": "RESOURCE_NOT_FOUND"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.FetchManifest(context.Background(), resourcex.Identifier{Name: "missing", Tag: "latest"})
	if resourcex.KindOf(err) != resourcex.KindResourceNotFound {
		t.Errorf("kind = %v, want ResourceNotFound", resourcex.KindOf(err))
	}
}

func TestFetchContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	body, err := c.FetchContent(context.Background(), resourcex.Identifier{Name: "hello", Tag: "latest"})
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if string(body) != "archive-bytes" {
		t.Errorf("FetchContent = %q", body)
	}
}

func TestHas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	ok, err := c.Has(context.Background(), resourcex.Identifier{Name: "hello", Tag: "latest"})
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !ok {
		t.Error("Has = false, want true")
	}
}

func TestPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("locator"); got != "hello:1.0.0" {
			t.Errorf("locator field = %q", got)
		}
		manifestFile, _, err := r.FormFile("manifest")
		if err != nil {
			t.Fatalf("manifest file: %v", err)
		}
		manifestBytes, _ := io.ReadAll(manifestFile)
		var m resourcex.Manifest
		if err := json.Unmarshal(manifestBytes, &m); err != nil {
			t.Fatalf("unmarshal manifest: %v", err)
		}
		if m.Definition.Name != "hello" {
			t.Errorf("manifest.Definition.Name = %q", m.Definition.Name)
		}

		contentFile, _, err := r.FormFile("content")
		if err != nil {
			t.Fatalf("content file: %v", err)
		}
		content, _ := io.ReadAll(contentFile)
		if string(content) != "archive-bytes" {
			t.Errorf("content = %q", content)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(publishResponse{Locator: "hello:1.0.0"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	locatorOut, err := c.Publish(context.Background(), id, resourcex.Manifest{Definition: resourcex.Definition{Name: "hello", Tag: "1.0.0"}}, []byte("archive-bytes"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if locatorOut != "hello:1.0.0" {
		t.Errorf("Publish = %q", locatorOut)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "hello" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		json.NewEncoder(w).Encode(SearchResponse{
			Results: []SearchResult{{Locator: "hello:1.0.0", Name: "hello", Type: "skill", Tag: "1.0.0"}},
			Total:   1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	resp, err := c.Search(context.Background(), "hello", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Errorf("Search = %+v", resp)
	}
}
