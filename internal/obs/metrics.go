package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	documentOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_operations_total",
			Help: "Document custody operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	orphanedBlobsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orphaned_blobs_total",
		Help: "Blobs left behind after a failed compensating delete.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		documentOpsTotal, orphanedBlobsTotal)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocumentOp records the outcome of one custody operation.
func ObserveDocumentOp(operation, outcome string) {
	documentOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveOrphanedBlob counts a compensating delete that itself failed.
func ObserveOrphanedBlob() {
	orphanedBlobsTotal.Inc()
}

// CanonicalPath collapses per-document identifiers so metric labels stay
// bounded regardless of how many files exist.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/files/"); ok && rest != "" {
		if id, found := strings.CutSuffix(rest, "/download"); found {
			if id != "" && !strings.Contains(id, "/") {
				return "/v1/files/:id/download"
			}
			return path
		}
		if !strings.Contains(rest, "/") {
			return "/v1/files/:id"
		}
	}
	return path
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
