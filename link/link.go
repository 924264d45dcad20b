// Package link implements the dev symlink index: a process-local map
// from locator to an absolute filesystem path, used by the resolution
// pipeline to bypass the CAS during local development ("hot reload").
package link

import (
	"sort"
	"sync"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/locator"
)

// Entry is one mapping held by the index.
type Entry struct {
	Locator      resourcex.Identifier
	AbsolutePath string
}

// Index is a locator -> absolute path map. The zero value is not usable;
// construct with New.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New constructs an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

func key(id resourcex.Identifier) string {
	registry, name, tag := id.Key()
	return registry + "\x00" + name + "\x00" + tag
}

// Link records the mapping from id to absolutePath, replacing any existing
// mapping for id. It does not inspect absolutePath; the caller supplies id,
// typically from running the source detection pipeline on that path.
func (idx *Index) Link(id resourcex.Identifier, absolutePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key(id)] = Entry{Locator: id, AbsolutePath: absolutePath}
}

// Unlink removes the mapping for id, if any.
func (idx *Index) Unlink(id resourcex.Identifier) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, key(id))
}

// Lookup returns the absolute path linked for id, if any.
func (idx *Index) Lookup(id resourcex.Identifier) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[key(id)]
	return e.AbsolutePath, ok
}

// List enumerates every mapping currently held, in locator string order.
func (idx *Index) List() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return locator.Format(out[i].Locator, false) < locator.Format(out[j].Locator, false)
	})
	return out
}
