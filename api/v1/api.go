// Package v1 implements the registry HTTP protocol: publish, fetch/head/
// delete a resource's manifest, stream its content, and search.
package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/resourcex/resourcex"
	apierrcode "github.com/resourcex/resourcex/api/errcode"
	"github.com/resourcex/resourcex/cas"
	"github.com/resourcex/resourcex/locator"
	"github.com/resourcex/resourcex/metrics"
	"github.com/resourcex/resourcex/store/manifest"
)

// Handler serves the registry HTTP protocol over a CAS registry.
type Handler struct {
	CAS *cas.Registry
}

// NewRouter builds the mux.Router exposing the protocol's endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.HandleFunc("/publish", h.publish).Methods(http.MethodPost)
	r.HandleFunc("/resource/{locator:.*}", h.getResource).Methods(http.MethodGet)
	r.HandleFunc("/resource/{locator:.*}", h.headResource).Methods(http.MethodHead)
	r.HandleFunc("/resource/{locator:.*}", h.deleteResource).Methods(http.MethodDelete)
	r.HandleFunc("/content/{locator:.*}", h.getContent).Methods(http.MethodGet)
	r.HandleFunc("/search", h.search).Methods(http.MethodGet)
	return r
}

// statusRecorder captures the status code a handler wrote, defaulting to
// 200 for handlers that never call WriteHeader explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records served requests to metrics.HTTPRequests, labeled
// by the matched route template rather than the raw path so that locator
// segments don't explode the metric's cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func parseLocatorVar(r *http.Request) (resourcex.Identifier, error) {
	return locator.Parse(mux.Vars(r)["locator"])
}

// publish handles POST /publish: a multipart locator/manifest/content
// upload. The server overrides the uploaded manifest's registry field with
// "" (the server IS the registry; clients prefix a registry locally when
// caching a copy fetched from here).
func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.LocatorRequired, "could not parse multipart form: "+err.Error()))
		return
	}

	locatorStr := r.FormValue("locator")
	if locatorStr == "" {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.LocatorRequired, "locator field is required"))
		return
	}
	id, err := locator.Parse(locatorStr)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	id.Registry = ""

	manifestFile, _, err := r.FormFile("manifest")
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.ManifestRequired, "manifest field is required"))
		return
	}
	defer manifestFile.Close()
	manifestBytes, err := io.ReadAll(manifestFile)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.ManifestRequired, "could not read manifest: "+err.Error()))
		return
	}
	var m resourcex.Manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.InvalidManifest, "could not parse manifest: "+err.Error()))
		return
	}
	m.Definition.Registry = ""

	contentFile, _, err := r.FormFile("content")
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.ContentRequired, "content field is required"))
		return
	}
	defer contentFile.Close()
	content, err := io.ReadAll(contentFile)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.ContentRequired, "could not read content: "+err.Error()))
		return
	}

	res := resourcex.Resource{
		Identifier: id,
		Manifest:   m,
		Archive:    content,
	}
	if err := h.CAS.Put(r.Context(), res); err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"locator": locator.Format(id, false)})
}

// getResource handles GET /resource/{locator}.
func (h *Handler) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseLocatorVar(r)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	id.Registry = ""

	res, err := h.CAS.Get(r.Context(), id)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res.Manifest.Definition)
}

// headResource handles HEAD /resource/{locator}.
func (h *Handler) headResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseLocatorVar(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id.Registry = ""

	has, err := h.CAS.Has(r.Context(), id)
	if err != nil || !has {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// deleteResource handles DELETE /resource/{locator}.
func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseLocatorVar(r)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	id.Registry = ""

	has, err := h.CAS.Has(r.Context(), id)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	if !has {
		apierrcode.ServeJSON(w, apierrcode.New(apierrcode.ResourceNotFound, "resource not found"))
		return
	}
	if err := h.CAS.Remove(r.Context(), id); err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getContent handles GET /content/{locator}, streaming the archive bytes.
func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseLocatorVar(r)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}
	id.Registry = ""

	res, err := h.CAS.Get(r.Context(), id)
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="archive.tar.gz"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Archive)
}

// searchResult is one entry of a GET /search response.
type searchResult struct {
	Locator  string `json:"locator"`
	Registry string `json:"registry,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Tag      string `json:"tag"`
}

// search handles GET /search?q=...&limit=...&offset=....
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	manifests, total, err := h.CAS.List(r.Context(), manifest.SearchOptions{
		Query:  query.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		apierrcode.ServeJSON(w, apierrcode.FromKind(resourcex.KindOf(err), err.Error()))
		return
	}

	results := make([]searchResult, 0, len(manifests))
	for _, m := range manifests {
		id := m.Identifier()
		results = append(results, searchResult{
			Locator:  locator.Format(id, false),
			Registry: m.Registry,
			Path:     m.Path,
			Name:     m.Name,
			Type:     m.Type,
			Tag:      m.Tag,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"results": results,
		"total":   total,
	})
}
