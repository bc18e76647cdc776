// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics bundles every collector the service emits, registered on a
// private registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	MessagesTotal   *prometheus.CounterVec
	PlannerRuns     *prometheus.CounterVec
	LLMFailures     prometheus.Counter
	CheckoutsTotal  prometheus.Counter
	VoiceJobsTotal  *prometheus.CounterVec
	VoiceBacklog    prometheus.Gauge
	VoiceCallsToday prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concierge_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_messages_total",
			Help: "Processed conversational messages by intent and agent.",
		}, []string{"intent", "agent"}),
		PlannerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_planner_runs_total",
			Help: "Planner attempts by result (used, clarification, declined).",
		}, []string{"result"}),
		LLMFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concierge_llm_failures_total",
			Help: "LLM calls that yielded no prediction.",
		}),
		CheckoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concierge_checkouts_total",
			Help: "Orders created through conversational checkout.",
		}),
		VoiceJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_voice_jobs_total",
			Help: "Voice recovery jobs by terminal disposition.",
		}, []string{"disposition"}),
		VoiceBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_voice_backlog_jobs",
			Help: "Jobs currently queued or retrying.",
		}),
		VoiceCallsToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concierge_voice_calls_today",
			Help: "Provider calls dispatched today (UTC).",
		}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration, m.MessagesTotal, m.PlannerRuns,
		m.LLMFailures, m.CheckoutsTotal, m.VoiceJobsTotal, m.VoiceBacklog,
		m.VoiceCallsToday,
	)
	return m
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
