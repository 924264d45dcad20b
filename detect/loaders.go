package detect

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/rxcontext"
)

// FolderLoader loads a resource's files from a local directory tree.
type FolderLoader struct{}

var _ Loader = FolderLoader{}

// CanLoad reports whether source names an existing local directory.
func (FolderLoader) CanLoad(source string) bool {
	info, err := os.Stat(source)
	return err == nil && info.IsDir()
}

// Load reads every regular file under source into memory, keyed by its
// path relative to source.
func (FolderLoader) Load(ctx rxcontext.Context, source string) (LoadedSource, error) {
	files := make(map[string][]byte)
	err := filepath.Walk(source, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return LoadedSource{}, resourcex.Wrap(resourcex.KindNoLoader, "load folder "+source, err)
	}
	return LoadedSource{Source: source, Files: files}, nil
}

// IsFresh compares the most recent modification time under source against
// cachedAt.
func (FolderLoader) IsFresh(ctx rxcontext.Context, source string, cachedAt time.Time) (bool, error) {
	fresh := false
	err := filepath.Walk(source, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.ModTime().After(cachedAt) {
			fresh = true
		}
		return nil
	})
	if err != nil {
		return false, resourcex.Wrap(resourcex.KindNoLoader, "stat folder "+source, err)
	}
	return fresh, nil
}

// HTTPSArchiveLoader loads a resource packaged as a gzipped tar served over
// HTTPS.
type HTTPSArchiveLoader struct {
	Client *http.Client
}

var _ Loader = HTTPSArchiveLoader{}

// CanLoad reports whether source is an HTTPS URL.
func (HTTPSArchiveLoader) CanLoad(source string) bool {
	return strings.HasPrefix(source, "https://")
}

func (l HTTPSArchiveLoader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}

// Load fetches source and unpacks it as a gzipped tar archive.
func (l HTTPSArchiveLoader) Load(ctx rxcontext.Context, source string) (LoadedSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return LoadedSource{}, resourcex.Wrap(resourcex.KindTransport, "build request for "+source, err)
	}
	resp, err := l.client().Do(req)
	if err != nil {
		return LoadedSource{}, resourcex.Wrap(resourcex.KindTransport, "fetch "+source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return LoadedSource{}, resourcex.NewError(resourcex.KindTransport, source+" returned an error status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return LoadedSource{}, resourcex.Wrap(resourcex.KindTransport, "read body from "+source, err)
	}

	files, err := archive.Unpack(body)
	if err != nil {
		return LoadedSource{}, err
	}
	return LoadedSource{Source: source, Files: files}, nil
}

// IsFresh always reports true: a remote archive source is always treated
// as changed. No request is made to check it (no Last-Modified probe).
func (HTTPSArchiveLoader) IsFresh(ctx rxcontext.Context, source string, cachedAt time.Time) (bool, error) {
	return true, nil
}
