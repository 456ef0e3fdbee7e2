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

	authRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejects_total",
			Help: "Authentication rejections by internal reason. The reason never reaches the response body.",
		},
		[]string{"reason"},
	)

	loanTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_transitions_total",
			Help: "Loan workflow transition attempts by action and result.",
		},
		[]string{"action", "result"},
	)
)

// Init registers all service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		authRejectsTotal,
		loanTransitionsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthReject increments the rejection counter for an internal reason label.
func AuthReject(reason string) {
	authRejectsTotal.WithLabelValues(reason).Inc()
}

// LoanTransition records a workflow transition attempt outcome.
func LoanTransition(action, result string) {
	loanTransitionsTotal.WithLabelValues(action, result).Inc()
}

// Instrument wraps a handler with request count/latency/in-flight metrics.
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

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// CanonicalPath collapses resource identifiers in known routes so metric
// label cardinality stays bounded under client-controlled paths.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/loans/"); ok {
		switch {
		case rest == "":
			return "/v1/loans"
		case strings.HasSuffix(rest, "/history") && strings.Count(rest, "/") == 1:
			return "/v1/loans/:id/history"
		case strings.HasSuffix(rest, "/transitions") && strings.Count(rest, "/") == 1:
			return "/v1/loans/:id/transitions"
		case !strings.Contains(rest, "/"):
			return "/v1/loans/:id"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/v1/menus/"); ok {
		if strings.HasSuffix(rest, "/category") && strings.Count(rest, "/") == 1 {
			return "/v1/menus/:code/category"
		}
	}
	return path
}
