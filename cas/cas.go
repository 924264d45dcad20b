// Package cas implements the content-addressable resource registry: the
// composition of a blob store and a manifest store into put/get/has/
// remove/list/gc operations behind one façade.
package cas

import (
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/metrics"
	"github.com/resourcex/resourcex/rxcontext"
	"github.com/resourcex/resourcex/store/blob"
	"github.com/resourcex/resourcex/store/manifest"
)

// Registry is the content-addressable resource registry.
type Registry struct {
	blobs     blob.Store
	manifests manifest.Store

	// gcMu is a reader/writer lock: puts/removes take the read side so
	// many can proceed concurrently, GC takes the write side only for its
	// reachability scan so it observes a consistent snapshot of the
	// manifest set, then releases it before deleting blobs.
	gcMu sync.RWMutex
}

// New constructs a Registry over the given blob and manifest stores.
func New(blobs blob.Store, manifests manifest.Store) *Registry {
	return &Registry{blobs: blobs, manifests: manifests}
}

// Put stores a resource, writing its blobs before its manifest.
func (r *Registry) Put(ctx rxcontext.Context, res resourcex.Resource) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveDuration(metrics.PutDuration, start, err) }()

	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	log := rxcontext.GetLogger(ctx)

	files, unpackErr := archive.Unpack(res.Archive)
	if unpackErr != nil {
		err = unpackErr
		return err
	}

	fileDigests := make(map[string]string, len(files))
	for name, content := range files {
		dgst, putErr := r.blobs.Put(ctx, content)
		if putErr != nil {
			err = resourcex.Wrap(resourcex.KindStorageIO, "put blob for "+name, putErr)
			return err
		}
		fileDigests[name] = dgst
	}

	def := res.Manifest.Definition
	id := res.Identifier
	stored := resourcex.StoredManifest{
		Registry:    id.Registry,
		Path:        id.Path,
		Name:        id.Name,
		Type:        def.Type,
		Tag:         id.Tag,
		Description: def.Description,
		Author:      def.Author,
		License:     def.License,
		Keywords:    def.Keywords,
		Repository:  def.Repository,
		Files:       fileDigests,
	}
	if err = r.manifests.Put(ctx, stored); err != nil {
		return err
	}

	registry, name, tag := id.Key()
	log.Debug("cas.Put " + name + ":" + tag)
	err = r.manifests.SetLatest(ctx, registry, name, tag)
	return err
}

// resolveTag returns the concrete tag to fetch: the tag in id if it isn't
// "latest" or empty, otherwise the latest pointer, falling back to the
// lexicographically-last entry of listTags for stores populated without
// ever calling setLatest.
func (r *Registry) resolveTag(ctx rxcontext.Context, registry, name, tag string) (string, error) {
	if tag != "" && tag != "latest" {
		return tag, nil
	}
	if resolved, ok, err := r.manifests.GetLatest(ctx, registry, name); err != nil {
		return "", err
	} else if ok {
		return resolved, nil
	}
	tags, err := r.manifests.ListTags(ctx, registry, name)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", resourcex.NewError(resourcex.KindResourceNotFound, "no tags for "+name)
	}
	return tags[len(tags)-1], nil
}

// Get retrieves and reassembles a resource.
func (r *Registry) Get(ctx rxcontext.Context, id resourcex.Identifier) (_ resourcex.Resource, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDuration(metrics.GetDuration, start, err) }()

	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	registry, name, tag := id.Key()
	resolvedTag, err := r.resolveTag(ctx, registry, name, tag)
	if err != nil {
		return resourcex.Resource{}, err
	}

	stored, err := r.manifests.Get(ctx, registry, name, resolvedTag)
	if err != nil {
		return resourcex.Resource{}, err
	}

	files := make(map[string][]byte, len(stored.Files))
	for fileName, dgst := range stored.Files {
		content, err := r.blobs.Get(ctx, dgst)
		if err != nil {
			if resourcex.KindOf(err) == resourcex.KindBlobNotFound {
				return resourcex.Resource{}, resourcex.NewError(resourcex.KindCorruptState, "manifest references missing blob "+dgst+" for "+fileName)
			}
			return resourcex.Resource{}, err
		}
		files[fileName] = content
	}

	packed, err := archive.Pack(files)
	if err != nil {
		return resourcex.Resource{}, err
	}

	resolvedID := stored.Identifier()
	return resourcex.Resource{
		Identifier: resolvedID,
		Manifest: resourcex.Manifest{
			Definition: stored.Definition(),
			Archive: resourcex.ArchiveSection{
				Digest: archive.DigestArchive(stored.Files),
				Files:  stored.Files,
			},
		},
		Archive: packed,
	}, nil
}

// Has reports whether a resource is present, after tag resolution.
func (r *Registry) Has(ctx rxcontext.Context, id resourcex.Identifier) (bool, error) {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	registry, name, tag := id.Key()
	resolvedTag, err := r.resolveTag(ctx, registry, name, tag)
	if err != nil {
		if resourcex.KindOf(err) == resourcex.KindResourceNotFound {
			return false, nil
		}
		return false, err
	}
	return r.manifests.Has(ctx, registry, name, resolvedTag)
}

// Remove deletes the manifest entry for id. Blobs are left untouched; it
// is not an error to remove a missing entry.
func (r *Registry) Remove(ctx rxcontext.Context, id resourcex.Identifier) error {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	registry, name, tag := id.Key()
	resolvedTag, err := r.resolveTag(ctx, registry, name, tag)
	if err != nil {
		if resourcex.KindOf(err) == resourcex.KindResourceNotFound {
			return nil
		}
		return err
	}
	if err := r.manifests.Delete(ctx, registry, name, resolvedTag); err != nil {
		if resourcex.KindOf(err) == resourcex.KindResourceNotFound {
			return nil
		}
		return err
	}
	return nil
}

// List delegates to the manifest store's search.
func (r *Registry) List(ctx rxcontext.Context, opts manifest.SearchOptions) ([]resourcex.StoredManifest, int, error) {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()
	return r.manifests.Search(ctx, opts)
}

// ClearCache deletes every manifest whose registry is non-empty, optionally
// restricted to one registry.
func (r *Registry) ClearCache(ctx rxcontext.Context, registry string) error {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	if registry != "" {
		return r.manifests.DeleteByRegistry(ctx, registry)
	}

	all, _, err := r.manifests.Search(ctx, manifest.SearchOptions{})
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, m := range all {
		if m.Registry == "" || seen[m.Registry] {
			continue
		}
		seen[m.Registry] = true
		if err := r.manifests.DeleteByRegistry(ctx, m.Registry); err != nil {
			return err
		}
	}
	return nil
}

// GC deletes every blob not referenced by any manifest and returns the
// number of blobs removed.
func (r *Registry) GC(ctx rxcontext.Context) (deleted int, err error) {
	defer func() {
		metrics.GCRuns.WithLabelValues(metrics.Outcome(err)).Inc()
		if err == nil {
			metrics.GCBlobsDeleted.Add(float64(deleted))
		}
	}()

	log := rxcontext.GetLogger(ctx)

	reachable, digests, err := r.scanForGC(ctx)
	if err != nil {
		return 0, err
	}

	var deleteErrs *multierror.Error
	for _, dgst := range digests {
		if reachable[dgst] {
			continue
		}
		if delErr := r.blobs.Delete(ctx, dgst); delErr != nil {
			deleteErrs = multierror.Append(deleteErrs, resourcex.Wrap(resourcex.KindStorageIO, "delete blob "+dgst, delErr))
			continue
		}
		deleted++
	}
	log.Info("cas.GC deleted blobs")
	err = deleteErrs.ErrorOrNil()
	return deleted, err
}

// scanForGC holds the exclusive lock only for the reachability scan: the
// set of digests referenced by any manifest, and the full blob digest
// list, captured as a consistent snapshot. Put and Remove block until this
// returns, but not during the deletion loop that follows it.
func (r *Registry) scanForGC(ctx rxcontext.Context) (reachable map[string]bool, digests []string, err error) {
	r.gcMu.Lock()
	defer r.gcMu.Unlock()

	all, _, err := r.manifests.Search(ctx, manifest.SearchOptions{})
	if err != nil {
		return nil, nil, err
	}
	reachable = map[string]bool{}
	for _, m := range all {
		for _, dgst := range m.Files {
			reachable[dgst] = true
		}
	}

	digests, err = r.blobs.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reachable, digests, nil
}
