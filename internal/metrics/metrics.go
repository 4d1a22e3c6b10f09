package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the reporting client and both servers.
type Metrics struct {
	ReporterCalls    *prometheus.CounterVec
	ReporterDuration *prometheus.HistogramVec
	PipelineRuns     *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	OpenSpans        prometheus.Gauge
	OrphanedSpans    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReporterCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "span_reporter_calls_total",
				Help: "Collector calls made by the span reporter",
			},
			[]string{"call", "outcome"},
		),
		ReporterDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "span_reporter_call_duration_seconds",
				Help:    "Round trip time of collector calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call"},
		),
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Traced pipeline runs by result",
			},
			[]string{"status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		OpenSpans: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_open_spans",
				Help: "Spans started at the collector and not yet stopped",
			},
		),
		OrphanedSpans: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_orphaned_spans_total",
				Help: "Spans ended by the collector because the client never stopped them",
			},
		),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency labelled by the matched route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
