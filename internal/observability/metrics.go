package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests  *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	llmRetries   *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	breakerState prometheus.Gauge

	stageLatency *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	advisory     *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_api_requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scope_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "scope_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_llm_requests_total",
			Help: "Upstream LLM attempts by model, phase and outcome.",
		}, []string{"model", "phase", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scope_llm_request_duration_seconds",
			Help:    "Upstream LLM attempt latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"model", "phase"}),
		llmRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_llm_retries_total",
			Help: "Gateway retries by phase.",
		}, []string{"phase"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_llm_cache_lookups_total",
			Help: "Gateway cache lookups by result (hit, miss, shared).",
		}, []string{"result"}),
		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "scope_llm_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scope_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds.",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120},
		}, []string{"stage", "status"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_pipeline_runs_total",
			Help: "Generation runs by outcome.",
		}, []string{"status"}),
		advisory: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_pipeline_degraded_total",
			Help: "Advisory failures swallowed by the pipeline, by stage.",
		}, []string{"stage"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveLLMRequest(model, phase, status string, dur time.Duration) {
	if m == nil {
		return
	}
	model = labelOr(model, "unknown")
	phase = labelOr(phase, "unknown")
	m.llmRequests.WithLabelValues(model, phase, labelOr(status, "unknown")).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, phase).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncLLMRetry(phase string) {
	if m != nil {
		m.llmRetries.WithLabelValues(labelOr(phase, "unknown")).Inc()
	}
}

func (m *Metrics) IncCache(result string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetBreakerState(state int) {
	if m != nil {
		m.breakerState.Set(float64(state))
	}
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m != nil {
		m.stageLatency.WithLabelValues(stage, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncRun(status string) {
	if m != nil {
		m.runs.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncDegraded(stage string) {
	if m != nil {
		m.advisory.WithLabelValues(stage).Inc()
	}
}

func labelOr(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
