package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	d := New(t.TempDir())
	if err := d.PutContent("a/b/c.txt", []byte("hello")); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	got, err := d.GetContent("a/b/c.txt")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("GetContent = %q", got)
	}
}

func TestGetContentNotFound(t *testing.T) {
	d := New(t.TempDir())
	if _, err := d.GetContent("missing"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestHas(t *testing.T) {
	d := New(t.TempDir())
	if has, err := d.Has("a"); err != nil || has {
		t.Fatalf("Has on empty store = %v, %v", has, err)
	}
	if err := d.PutContent("a", []byte("1")); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if has, err := d.Has("a"); err != nil || !has {
		t.Fatalf("Has after put = %v, %v", has, err)
	}
}

func TestList(t *testing.T) {
	d := New(t.TempDir())
	for _, p := range []string{"a/1", "a/2", "b/1"} {
		if err := d.PutContent(p, []byte("x")); err != nil {
			t.Fatalf("PutContent(%s): %v", p, err)
		}
	}
	entries, err := d.List("a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("List(a) = %v, want 2 entries", entries)
	}
}

func TestDeleteIsRecursive(t *testing.T) {
	d := New(t.TempDir())
	if err := d.PutContent("a/1", []byte("x")); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if err := d.PutContent("a/2", []byte("x")); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if err := d.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.GetContent("a/1"); err == nil {
		t.Error("expected a/1 to be gone after deleting a")
	}
	if _, err := os.Stat(filepath.Join(d.root, "a")); !os.IsNotExist(err) {
		t.Errorf("expected root/a removed, stat err = %v", err)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	d := New(t.TempDir())
	if err := d.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}
