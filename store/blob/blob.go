// Package blob implements the byte-addressable blob store: a
// deduplicated store keyed by SHA-256 digest, backed by a
// storagedriver.StorageDriver. The on-disk layout is one file per digest,
// named by the hex portion of the digest.
package blob

import (
	digest "github.com/opencontainers/go-digest"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/rxcontext"
	"github.com/resourcex/resourcex/storagedriver"
)

// Store is the blob store interface used by the CAS registry.
type Store interface {
	// Get retrieves the blob by digest. Returns a *resourcex.Error with
	// Kind resourcex.KindBlobNotFound if absent.
	Get(ctx rxcontext.Context, dgst string) ([]byte, error)

	// Put computes the digest of content, writing it iff a blob with that
	// digest is not already present, and returns the digest. Two
	// successive Puts of identical content perform at most one physical
	// write.
	Put(ctx rxcontext.Context, content []byte) (string, error)

	// Has reports whether a blob with this digest is present.
	Has(ctx rxcontext.Context, dgst string) (bool, error)

	// Delete removes the blob with this digest. It is the sole intended
	// caller is garbage collection; it is not an error to delete an
	// absent digest.
	Delete(ctx rxcontext.Context, dgst string) error

	// List enumerates every digest currently present.
	List(ctx rxcontext.Context) ([]string, error)
}

const blobsPrefix = "blobs/"

func blobPath(dgst string) (string, error) {
	d, err := digest.Parse(dgst)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindStorageIO, "invalid digest "+dgst, err)
	}
	return blobsPrefix + d.Encoded(), nil
}

// driverStore is the Store implementation backed by a storagedriver.
type driverStore struct {
	driver storagedriver.StorageDriver
}

// New constructs a Store persisting blobs through driver.
func New(driver storagedriver.StorageDriver) Store {
	return &driverStore{driver: driver}
}

func (s *driverStore) Get(ctx rxcontext.Context, dgst string) ([]byte, error) {
	rxcontext.GetLogger(ctx).Debug("blob.Get " + dgst)
	path, err := blobPath(dgst)
	if err != nil {
		return nil, err
	}
	content, err := s.driver.GetContent(path)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, resourcex.NewError(resourcex.KindBlobNotFound, "blob not found: "+dgst)
		}
		return nil, resourcex.Wrap(resourcex.KindStorageIO, "get blob "+dgst, err)
	}
	return content, nil
}

func (s *driverStore) Put(ctx rxcontext.Context, content []byte) (string, error) {
	dgst := digest.FromBytes(content).String()
	path, err := blobPath(dgst)
	if err != nil {
		return "", err
	}

	exists, err := s.driver.Has(path)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindStorageIO, "stat blob "+dgst, err)
	}
	if exists {
		rxcontext.GetLogger(ctx).Debug("blob.Put " + dgst + " already present")
		return dgst, nil
	}

	rxcontext.GetLogger(ctx).Debug("blob.Put " + dgst)
	if err := s.driver.PutContent(path, content); err != nil {
		return "", resourcex.Wrap(resourcex.KindStorageIO, "put blob "+dgst, err)
	}
	return dgst, nil
}

func (s *driverStore) Has(ctx rxcontext.Context, dgst string) (bool, error) {
	path, err := blobPath(dgst)
	if err != nil {
		return false, err
	}
	ok, err := s.driver.Has(path)
	if err != nil {
		return false, resourcex.Wrap(resourcex.KindStorageIO, "stat blob "+dgst, err)
	}
	return ok, nil
}

func (s *driverStore) Delete(ctx rxcontext.Context, dgst string) error {
	path, err := blobPath(dgst)
	if err != nil {
		return err
	}
	rxcontext.GetLogger(ctx).Debug("blob.Delete " + dgst)
	if err := s.driver.Delete(path); err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "delete blob "+dgst, err)
	}
	return nil
}

func (s *driverStore) List(ctx rxcontext.Context) ([]string, error) {
	paths, err := s.driver.List(blobsPrefix)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindStorageIO, "list blobs", err)
	}
	digests := make([]string, 0, len(paths))
	for _, p := range paths {
		encoded := p[len(blobsPrefix):]
		digests = append(digests, "sha256:"+encoded)
	}
	return digests, nil
}
