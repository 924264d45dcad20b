// Package inmemory implements a storagedriver.StorageDriver backed by a
// map, intended for tests and for running the resolution pipeline and CAS
// registry without touching disk.
package inmemory

import (
	"strings"
	"sync"

	"github.com/resourcex/resourcex/storagedriver"
)

// Driver is a storagedriver.StorageDriver implementation backed by a map.
type Driver struct {
	mu      sync.RWMutex
	storage map[string][]byte
}

// New constructs an empty Driver.
func New() *Driver {
	return &Driver{storage: make(map[string][]byte)}
}

var _ storagedriver.StorageDriver = (*Driver)(nil)

// GetContent implements storagedriver.StorageDriver.
func (d *Driver) GetContent(path string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	contents, ok := d.storage[path]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: path}
	}
	out := make([]byte, len(contents))
	copy(out, contents)
	return out, nil
}

// PutContent implements storagedriver.StorageDriver.
func (d *Driver) PutContent(path string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	d.storage[path] = cp
	return nil
}

// Has implements storagedriver.StorageDriver.
func (d *Driver) Has(path string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.storage[path]
	return ok, nil
}

// List implements storagedriver.StorageDriver, returning every key that
// begins with prefix. The match is on the plain string, so a prefix ending
// in "/" lists exactly the keys nested under that directory.
func (d *Driver) List(prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var keys []string
	for k := range d.storage {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete implements storagedriver.StorageDriver, removing path itself and,
// mirroring the recursive directory-delete semantics of the filesystem
// driver, every key nested under it.
func (d *Driver) Delete(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.storage, path)
	prefix := path + "/"
	for k := range d.storage {
		if strings.HasPrefix(k, prefix) {
			delete(d.storage, k)
		}
	}
	return nil
}
