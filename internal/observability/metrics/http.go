package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal           *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
	queryResultBlocks    *prometheus.HistogramVec
	queryNoResultsTotal  *prometheus.CounterVec
	hybridClampTotal     *prometheus.CounterVec
	bindingRefreshTotal  *prometheus.CounterVec
	sessionPersistsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bq",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total completed retrieval queries by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Retrieval query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	queryResultBlocks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "result_blocks",
			Help:      "Distribution of result records per successful query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		},
		[]string{"service", "mode"},
	)
	queryNoResultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "no_results_total",
			Help:      "Total successful queries that returned no records.",
		},
		[]string{"service", "mode"},
	)
	hybridClampTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "hybrid_clamp_total",
			Help:      "Total dual-pass queries whose result count was clamped to the safety cap.",
		},
		[]string{"service"},
	)
	bindingRefreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "retrieval",
			Name:      "binding_refresh_total",
			Help:      "Total embedding binding refreshes triggered by reindex events.",
		},
		[]string{"service", "status"},
	)
	sessionPersistsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bq",
			Subsystem: "session",
			Name:      "persists_total",
			Help:      "Total query session save operations by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		queryResultBlocks,
		queryNoResultsTotal,
		hybridClampTotal,
		bindingRefreshTotal,
		sessionPersistsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		queryTotal:           queryTotal,
		queryDuration:        queryDuration,
		queryResultBlocks:    queryResultBlocks,
		queryNoResultsTotal:  queryNoResultsTotal,
		hybridClampTotal:     hybridClampTotal,
		bindingRefreshTotal:  bindingRefreshTotal,
		sessionPersistsTotal: sessionPersistsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{query_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, mode, status string, resultCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.queryTotal.WithLabelValues(service, mode, status).Inc()
	if status != "ok" {
		return
	}
	m.queryDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	m.queryResultBlocks.WithLabelValues(service, mode).Observe(float64(resultCount))
	if resultCount == 0 {
		m.queryNoResultsTotal.WithLabelValues(service, mode).Inc()
	}
}

func (m *HTTPServerMetrics) RecordHybridClamp(service string) {
	m.hybridClampTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordBindingRefresh(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.bindingRefreshTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordSessionPersist(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.sessionPersistsTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
