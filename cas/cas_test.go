package cas

import (
	"context"
	"testing"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/store/blob"
	"github.com/resourcex/resourcex/store/manifest"
	"github.com/resourcex/resourcex/storagedriver/inmemory"
)

func newRegistry() *Registry {
	return New(blob.New(inmemory.New()), manifest.New(inmemory.New()))
}

func mustResource(t *testing.T, id resourcex.Identifier, files map[string][]byte) resourcex.Resource {
	t.Helper()
	packed, err := archive.Pack(files)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return resourcex.Resource{
		Identifier: id,
		Manifest: resourcex.Manifest{
			Definition: resourcex.Definition{Name: id.Name, Path: id.Path, Tag: id.Tag, Type: "skill"},
		},
		Archive: packed,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	files := map[string][]byte{"SKILL.md": []byte("# hello")}

	if err := r.Put(ctx, mustResource(t, id, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	unpacked, err := archive.Unpack(got.Archive)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if string(unpacked["SKILL.md"]) != "# hello" {
		t.Errorf("file content = %q", unpacked["SKILL.md"])
	}
}

func TestGetResolvesLatest(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	files := map[string][]byte{"a": []byte("1")}

	if err := r.Put(ctx, mustResource(t, resourcex.Identifier{Name: "hello", Tag: "1.0.0"}, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Put(ctx, mustResource(t, resourcex.Identifier{Name: "hello", Tag: "2.0.0"}, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := r.Get(ctx, resourcex.Identifier{Name: "hello", Tag: "latest"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Identifier.Tag != "2.0.0" {
		t.Errorf("latest resolved to %q, want 2.0.0", got.Identifier.Tag)
	}
}

func TestGetNotFound(t *testing.T) {
	r := newRegistry()
	_, err := r.Get(context.Background(), resourcex.Identifier{Name: "missing", Tag: "latest"})
	if resourcex.KindOf(err) != resourcex.KindResourceNotFound {
		t.Errorf("kind = %v, want ResourceNotFound", resourcex.KindOf(err))
	}
}

func TestRemoveIsNoopOnMissing(t *testing.T) {
	r := newRegistry()
	err := r.Remove(context.Background(), resourcex.Identifier{Name: "missing", Tag: "1.0.0"})
	if err != nil {
		t.Errorf("Remove on missing: %v", err)
	}
}

func TestRemoveLeavesBlobs(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	files := map[string][]byte{"a": []byte("content")}

	if err := r.Put(ctx, mustResource(t, id, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	digests, err := r.blobs.List(ctx)
	if err != nil {
		t.Fatalf("List blobs: %v", err)
	}
	if len(digests) != 1 {
		t.Errorf("expected blob to survive Remove, got %d blobs", len(digests))
	}
}

func TestGCDeletesUnreferencedBlobs(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	files := map[string][]byte{"a": []byte("content")}

	if err := r.Put(ctx, mustResource(t, id, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	deleted, err := r.GC(ctx)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if deleted != 1 {
		t.Errorf("GC deleted %d blobs, want 1", deleted)
	}

	digests, err := r.blobs.List(ctx)
	if err != nil {
		t.Fatalf("List blobs: %v", err)
	}
	if len(digests) != 0 {
		t.Errorf("expected no blobs after GC, got %d", len(digests))
	}
}

func TestGCKeepsReferencedBlobs(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	id := resourcex.Identifier{Name: "hello", Tag: "1.0.0"}
	files := map[string][]byte{"a": []byte("content")}

	if err := r.Put(ctx, mustResource(t, id, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	deleted, err := r.GC(ctx)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if deleted != 0 {
		t.Errorf("GC deleted %d referenced blobs, want 0", deleted)
	}
}

func TestClearCacheOnlyTouchesRemoteManifests(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	files := map[string][]byte{"a": []byte("1")}

	if err := r.Put(ctx, mustResource(t, resourcex.Identifier{Name: "local", Tag: "1.0.0"}, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Put(ctx, mustResource(t, resourcex.Identifier{Registry: "example.com", Name: "remote", Tag: "1.0.0"}, files)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := r.ClearCache(ctx, ""); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}

	if has, _ := r.Has(ctx, resourcex.Identifier{Name: "local", Tag: "1.0.0"}); !has {
		t.Error("ClearCache removed a local manifest")
	}
	if has, _ := r.Has(ctx, resourcex.Identifier{Registry: "example.com", Name: "remote", Tag: "1.0.0"}); has {
		t.Error("ClearCache left a remote manifest in place")
	}
}
