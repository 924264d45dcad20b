// Package manifest implements the manifest store: stored resource
// manifests keyed by (registry?, name, tag), with tag -> "latest" pointers.
// The on-disk layout is manifests/{registry|"_local"}/{name}/{tag}.json with
// a sibling _latest pointer file per name.
package manifest

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/rxcontext"
	"github.com/resourcex/resourcex/storagedriver"
)

const localNamespace = "_local"

// SearchOptions controls Store.Search. Registry follows a three-state
// convention: nil means any registry, a pointer to "" means local only, a
// pointer to a non-empty string means that specific registry.
type SearchOptions struct {
	Registry *string
	Query    string
	Limit    int
	Offset   int
}

// Store is the manifest store interface used by the CAS registry.
type Store interface {
	Get(ctx rxcontext.Context, registry, name, tag string) (resourcex.StoredManifest, error)
	Put(ctx rxcontext.Context, m resourcex.StoredManifest) error
	Has(ctx rxcontext.Context, registry, name, tag string) (bool, error)
	Delete(ctx rxcontext.Context, registry, name, tag string) error
	ListTags(ctx rxcontext.Context, registry, name string) ([]string, error)
	ListNames(ctx rxcontext.Context, registry string, query string) ([]string, error)
	Search(ctx rxcontext.Context, opts SearchOptions) ([]resourcex.StoredManifest, int, error)
	DeleteByRegistry(ctx rxcontext.Context, registry string) error
	SetLatest(ctx rxcontext.Context, registry, name, tag string) error
	GetLatest(ctx rxcontext.Context, registry, name string) (string, bool, error)
}

func namespace(registry string) string {
	if registry == "" {
		return localNamespace
	}
	return registry
}

func manifestPath(registry, name, tag string) string {
	return "manifests/" + namespace(registry) + "/" + name + "/" + tag + ".json"
}

func latestPath(registry, name string) string {
	return "manifests/" + namespace(registry) + "/" + name + "/_latest"
}

func tagDir(registry, name string) string {
	return "manifests/" + namespace(registry) + "/" + name + "/"
}

// driverStore is the Store implementation backed by a storagedriver, with
// an in-process mutex serializing Put calls: concurrent puts of the same key
// serialize at this layer, since storagedriver implementations give no
// cross-process guarantee. Delete, SetLatest and DeleteByRegistry do not
// take the mutex.
type driverStore struct {
	mu     sync.Mutex
	driver storagedriver.StorageDriver
}

// New constructs a Store persisting manifests through driver.
func New(driver storagedriver.StorageDriver) Store {
	return &driverStore{driver: driver}
}

func (s *driverStore) Get(ctx rxcontext.Context, registry, name, tag string) (resourcex.StoredManifest, error) {
	rxcontext.GetLogger(ctx).Debug("manifest.Get " + name + ":" + tag)
	raw, err := s.driver.GetContent(manifestPath(registry, name, tag))
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return resourcex.StoredManifest{}, resourcex.NewError(resourcex.KindResourceNotFound, "manifest not found: "+name+":"+tag)
		}
		return resourcex.StoredManifest{}, resourcex.Wrap(resourcex.KindStorageIO, "get manifest", err)
	}
	var m resourcex.StoredManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return resourcex.StoredManifest{}, resourcex.Wrap(resourcex.KindCorruptState, "decode manifest", err)
	}
	return m, nil
}

func (s *driverStore) Put(ctx rxcontext.Context, m resourcex.StoredManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, name, tag := m.Identifier().Key()
	rxcontext.GetLogger(ctx).Debug("manifest.Put " + name + ":" + tag)

	if existing, err := s.Get(ctx, registry, name, tag); err == nil {
		m.CreatedAt = existing.CreatedAt
	} else if resourcex.KindOf(err) != resourcex.KindResourceNotFound {
		return err
	} else {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(m)
	if err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "encode manifest", err)
	}
	if err := s.driver.PutContent(manifestPath(registry, name, tag), raw); err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "put manifest", err)
	}
	return nil
}

func (s *driverStore) Has(ctx rxcontext.Context, registry, name, tag string) (bool, error) {
	ok, err := s.driver.Has(manifestPath(registry, name, tag))
	if err != nil {
		return false, resourcex.Wrap(resourcex.KindStorageIO, "stat manifest", err)
	}
	return ok, nil
}

func (s *driverStore) Delete(ctx rxcontext.Context, registry, name, tag string) error {
	rxcontext.GetLogger(ctx).Debug("manifest.Delete " + name + ":" + tag)
	if err := s.driver.Delete(manifestPath(registry, name, tag)); err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "delete manifest", err)
	}
	return nil
}

func (s *driverStore) ListTags(ctx rxcontext.Context, registry, name string) ([]string, error) {
	paths, err := s.driver.List(tagDir(registry, name))
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindStorageIO, "list tags", err)
	}
	var tags []string
	for _, p := range paths {
		base := p[strings.LastIndex(p, "/")+1:]
		if strings.HasSuffix(base, ".json") {
			tags = append(tags, strings.TrimSuffix(base, ".json"))
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *driverStore) ListNames(ctx rxcontext.Context, registry string, query string) ([]string, error) {
	prefix := "manifests/" + namespace(registry) + "/"
	paths, err := s.driver.List(prefix)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindStorageIO, "list names", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, p := range paths {
		rest := strings.TrimPrefix(p, prefix)
		i := strings.LastIndex(rest, "/")
		if i < 0 {
			continue
		}
		name := rest[:i]
		if query != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *driverStore) Search(ctx rxcontext.Context, opts SearchOptions) ([]resourcex.StoredManifest, int, error) {
	var registries []string
	if opts.Registry == nil {
		prefix := "manifests/"
		paths, err := s.driver.List(prefix)
		if err != nil {
			return nil, 0, resourcex.Wrap(resourcex.KindStorageIO, "list registries", err)
		}
		seen := map[string]bool{}
		for _, p := range paths {
			rest := strings.TrimPrefix(p, prefix)
			i := strings.Index(rest, "/")
			if i < 0 {
				continue
			}
			ns := rest[:i]
			if !seen[ns] {
				seen[ns] = true
				if ns == localNamespace {
					registries = append(registries, "")
				} else {
					registries = append(registries, ns)
				}
			}
		}
	} else {
		registries = []string{*opts.Registry}
	}
	sort.Strings(registries)

	var all []resourcex.StoredManifest
	for _, registry := range registries {
		names, err := s.ListNames(ctx, registry, opts.Query)
		if err != nil {
			return nil, 0, err
		}
		for _, name := range names {
			tags, err := s.ListTags(ctx, registry, name)
			if err != nil {
				return nil, 0, err
			}
			for _, tag := range tags {
				m, err := s.Get(ctx, registry, name, tag)
				if err != nil {
					if resourcex.KindOf(err) == resourcex.KindResourceNotFound {
						continue
					}
					return nil, 0, err
				}
				all = append(all, m)
			}
		}
	}

	total := len(all)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return all[start:end], total, nil
}

func (s *driverStore) DeleteByRegistry(ctx rxcontext.Context, registry string) error {
	if registry == "" {
		return resourcex.NewError(resourcex.KindStorageIO, "DeleteByRegistry requires a non-empty registry")
	}
	if err := s.driver.Delete("manifests/" + registry); err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "delete registry namespace", err)
	}
	return nil
}

func (s *driverStore) SetLatest(ctx rxcontext.Context, registry, name, tag string) error {
	rxcontext.GetLogger(ctx).Debug("manifest.SetLatest " + name + " -> " + tag)
	if err := s.driver.PutContent(latestPath(registry, name), []byte(tag)); err != nil {
		return resourcex.Wrap(resourcex.KindStorageIO, "set latest pointer", err)
	}
	return nil
}

func (s *driverStore) GetLatest(ctx rxcontext.Context, registry, name string) (string, bool, error) {
	raw, err := s.driver.GetContent(latestPath(registry, name))
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return "", false, nil
		}
		return "", false, resourcex.Wrap(resourcex.KindStorageIO, "get latest pointer", err)
	}
	return string(raw), true, nil
}
