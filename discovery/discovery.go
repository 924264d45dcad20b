// Package discovery implements well-known endpoint discovery: given a
// domain, find the ResourceX registry endpoint it advertises at
// /.well-known/resourcex.
package discovery

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/rxcontext"
)

const wellKnownPath = "/.well-known/resourcex"

type wellKnownDocument struct {
	Version    string   `json:"version,omitempty"`
	Registries []string `json:"registries"`
}

// Discoverer resolves a domain to a registry endpoint, memoizing results
// for the process lifetime of the instance.
type Discoverer struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]string
}

// New constructs a Discoverer using client for outbound requests. A nil
// client falls back to http.DefaultClient.
func New(client *http.Client) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discoverer{client: client, cache: make(map[string]string)}
}

// Discover returns the first registry endpoint domain advertises, fetching
// and caching it on first call.
func (d *Discoverer) Discover(ctx rxcontext.Context, domain string) (string, error) {
	d.mu.Lock()
	if endpoint, ok := d.cache[domain]; ok {
		d.mu.Unlock()
		return endpoint, nil
	}
	d.mu.Unlock()

	url := "https://" + domain + wellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindDiscoveryFailed, "build discovery request for "+domain, err)
	}

	rxcontext.GetLogger(ctx).Debug("discovery.Discover " + domain)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindDiscoveryFailed, "fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resourcex.NewError(resourcex.KindDiscoveryFailed, fmt.Sprintf("%s returned status %d", url, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindDiscoveryFailed, "read discovery body from "+url, err)
	}

	var doc wellKnownDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", resourcex.Wrap(resourcex.KindDiscoveryFailed, "parse discovery document from "+url, err)
	}
	if len(doc.Registries) == 0 {
		return "", resourcex.NewError(resourcex.KindEmptyRegistries, "discovery document for "+domain+" lists no registries")
	}

	endpoint := doc.Registries[0]
	d.mu.Lock()
	d.cache[domain] = endpoint
	d.mu.Unlock()
	return endpoint, nil
}
