// Package metrics exposes registry operation counters and histograms via
// github.com/prometheus/client_golang.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resourcex"

var (
	// PutDuration records how long CAS puts take, labeled by outcome.
	PutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cas",
		Name:      "put_duration_seconds",
		Help:      "Duration of CAS put operations.",
	}, []string{"outcome"})

	// GetDuration records how long CAS gets take, labeled by outcome.
	GetDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cas",
		Name:      "get_duration_seconds",
		Help:      "Duration of CAS get operations.",
	}, []string{"outcome"})

	// GCBlobsDeleted counts blobs removed by garbage collection runs.
	GCBlobsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cas",
		Name:      "gc_blobs_deleted_total",
		Help:      "Total number of blobs deleted by garbage collection.",
	})

	// GCRuns counts garbage collection runs, labeled by outcome.
	GCRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cas",
		Name:      "gc_runs_total",
		Help:      "Total number of garbage collection runs.",
	}, []string{"outcome"})

	// HTTPRequests counts served HTTP requests, labeled by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests served.",
	}, []string{"route", "status"})
)

// Outcome returns "ok" or "error", the label value convention used across
// this package's outcome-labeled metrics.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveDuration records elapsed since start against h, labeled by err's
// outcome.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, err error) {
	h.WithLabelValues(Outcome(err)).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
