// Package rxclient implements the HTTP client side of the registry
// protocol: publish, fetch manifest/content, and search, used by the
// resolution pipeline to reach mirrors and origins and by end users to
// talk to a registry directly.
package rxclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/locator"
	"github.com/resourcex/resourcex/rxcontext"
)

// SearchResult is one entry of a search response.
type SearchResult struct {
	Locator  string `json:"locator"`
	Registry string `json:"registry,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Tag      string `json:"tag"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// publishResponse is the body of a successful POST /publish.
type publishResponse struct {
	Locator string `json:"locator"`
}

// errorResponse is the stable error envelope every non-stream endpoint
// returns on failure.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client talks to one registry's HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New constructs a Client against baseURL (e.g. "https://registry.example.com/api/v1").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

func (c *Client) url(pathSuffix string) string {
	return c.BaseURL + pathSuffix
}

// httpErr maps a non-2xx response to a resourcex.Error: 404 becomes
// KindResourceNotFound and any other status KindTransport. The envelope's
// error message is used when present; its code is not consulted.
func httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var envelope errorResponse
	_ = json.Unmarshal(body, &envelope)

	kind := resourcex.KindTransport
	if resp.StatusCode == http.StatusNotFound {
		kind = resourcex.KindResourceNotFound
	}
	msg := envelope.Error
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return resourcex.NewError(kind, msg)
}

// FetchManifest retrieves the definition section for id.
func (c *Client) FetchManifest(ctx rxcontext.Context, id resourcex.Identifier) (resourcex.Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/resource/"+locator.Format(id, false)), nil)
	if err != nil {
		return resourcex.Definition{}, resourcex.Wrap(resourcex.KindTransport, "build manifest request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resourcex.Definition{}, resourcex.Wrap(resourcex.KindTransport, "fetch manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resourcex.Definition{}, httpErr(resp)
	}

	var def resourcex.Definition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return resourcex.Definition{}, resourcex.Wrap(resourcex.KindTransport, "decode manifest", err)
	}
	return def, nil
}

// FetchContent retrieves the archive bytes for id.
func (c *Client) FetchContent(ctx rxcontext.Context, id resourcex.Identifier) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/content/"+locator.Format(id, false)), nil)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindTransport, "build content request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindTransport, "fetch content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpErr(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindTransport, "read content body", err)
	}
	return body, nil
}

// Has performs a HEAD existence check.
func (c *Client) Has(ctx rxcontext.Context, id resourcex.Identifier) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url("/resource/"+locator.Format(id, false)), nil)
	if err != nil {
		return false, resourcex.Wrap(resourcex.KindTransport, "build head request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, resourcex.Wrap(resourcex.KindTransport, "head resource", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Publish uploads a resource's manifest and content archive.
func (c *Client) Publish(ctx rxcontext.Context, id resourcex.Identifier, manifest resourcex.Manifest, content []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("locator", locator.Format(id, false)); err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "write locator field", err)
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "encode manifest", err)
	}
	manifestPart, err := writer.CreateFormFile("manifest", "manifest.json")
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "create manifest part", err)
	}
	if _, err := manifestPart.Write(manifestJSON); err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "write manifest part", err)
	}

	contentPart, err := writer.CreateFormFile("content", "archive.tar.gz")
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "create content part", err)
	}
	if _, err := contentPart.Write(content); err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "write content part", err)
	}
	if err := writer.Close(); err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "close multipart writer", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/publish"), &body)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "build publish request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "publish", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", httpErr(resp)
	}
	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resourcex.Wrap(resourcex.KindTransport, "decode publish response", err)
	}
	return out.Locator, nil
}

// Remove deletes a manifest entry (blobs are kept server-side).
func (c *Client) Remove(ctx rxcontext.Context, id resourcex.Identifier) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/resource/"+locator.Format(id, false)), nil)
	if err != nil {
		return resourcex.Wrap(resourcex.KindTransport, "build delete request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resourcex.Wrap(resourcex.KindTransport, "delete resource", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return httpErr(resp)
	}
	return nil
}

// Search queries the registry's search endpoint.
func (c *Client) Search(ctx rxcontext.Context, query string, limit, offset int) (SearchResponse, error) {
	values := url.Values{}
	if query != "" {
		values.Set("q", query)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/search?"+values.Encode()), nil)
	if err != nil {
		return SearchResponse{}, resourcex.Wrap(resourcex.KindTransport, "build search request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SearchResponse{}, resourcex.Wrap(resourcex.KindTransport, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchResponse{}, httpErr(resp)
	}
	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SearchResponse{}, resourcex.Wrap(resourcex.KindTransport, "decode search response", err)
	}
	return out, nil
}
