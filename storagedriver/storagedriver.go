// Package storagedriver defines the byte-addressable storage abstraction
// that underlies the blob and manifest stores. It deliberately exposes a
// narrower surface than a general object store: whole-object get/put,
// existence, listing and deletion. Archives are materialized whole (no
// streaming partial reads), so there is no ReadStream/WriteStream pair here.
package storagedriver

import "fmt"

// StorageDriver defines the methods a storage backend must implement for a
// filesystem-like key/value object store.
type StorageDriver interface {
	// GetContent retrieves the content stored at "path" as a []byte.
	GetContent(path string) ([]byte, error)

	// PutContent stores the []byte content at a location designated by
	// "path", creating any parent directories the backend needs.
	PutContent(path string, content []byte) error

	// Has reports whether "path" exists.
	Has(path string) (bool, error)

	// List returns every path that exists under "prefix", in no particular
	// order.
	List(prefix string) ([]string, error)

	// Delete removes "path" and everything nested under it. It is not an
	// error to delete a path that does not exist.
	Delete(path string) error
}

// PathNotFoundError is returned when operating on a nonexistent path.
type PathNotFoundError struct {
	Path string
}

func (err PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", err.Path)
}
