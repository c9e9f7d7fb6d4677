package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry, so
// several servers (and tests) can coexist in one process.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	pipelineRuns      *prometheus.CounterVec
	scenarioWarnings  *prometheus.CounterVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbonscope",
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carbonscope",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbonscope",
			Name:      "engine_runs_total",
			Help:      "Engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		scenarioWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbonscope",
			Name:      "scenario_warnings_total",
			Help:      "Scenario data-quality warnings returned to callers, by code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.pipelineRuns,
		m.scenarioWarnings,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labeled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// EngineRun counts one engine operation. Errors that map to a 4xx status
// count as rejected rather than error.
func (m *Metrics) EngineRun(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if status, _ := classify(err); status < http.StatusInternalServerError {
			outcome = "rejected"
		}
	}
	m.pipelineRuns.WithLabelValues(operation, outcome).Inc()
}

// Warning counts a scenario warning returned to a caller.
func (m *Metrics) Warning(code string) {
	if m == nil {
		return
	}
	m.scenarioWarnings.WithLabelValues(code).Inc()
}
