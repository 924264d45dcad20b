// Package filesystem implements a storagedriver.StorageDriver backed by a
// local directory tree. All paths are subpaths of the driver's root
// directory; writes are staged to a uniquely named temp file and renamed
// into place so a reader never observes a partial write.
package filesystem

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/resourcex/resourcex/storagedriver"
)

// DefaultRootDirectory is used when New is called with an empty root.
const DefaultRootDirectory = "/var/lib/resourcex"

// Driver is a storagedriver.StorageDriver implementation backed by a local
// filesystem. All provided paths are subpaths of the root directory.
type Driver struct {
	root string
}

// New constructs a Driver rooted at rootDirectory.
func New(rootDirectory string) *Driver {
	if rootDirectory == "" {
		rootDirectory = DefaultRootDirectory
	}
	return &Driver{root: rootDirectory}
}

var _ storagedriver.StorageDriver = (*Driver)(nil)

func (d *Driver) fullPath(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(p))
}

// GetContent implements storagedriver.StorageDriver.
func (d *Driver) GetContent(path string) ([]byte, error) {
	contents, err := os.ReadFile(d.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: path}
		}
		return nil, err
	}
	return contents, nil
}

// PutContent implements storagedriver.StorageDriver. It writes to a
// sibling temp file and renames it into place so concurrent readers never
// see a truncated write.
func (d *Driver) PutContent(path string, content []byte) error {
	fullPath := d.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	tmp := fullPath + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, fullPath)
}

// Has implements storagedriver.StorageDriver.
func (d *Driver) Has(path string) (bool, error) {
	_, err := os.Stat(d.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List implements storagedriver.StorageDriver, recursively walking every
// regular file under prefix and returning its slash-separated path relative
// to the driver's root.
func (d *Driver) List(prefix string) ([]string, error) {
	root := d.fullPath(prefix)
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements storagedriver.StorageDriver.
func (d *Driver) Delete(path string) error {
	err := os.RemoveAll(d.fullPath(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
