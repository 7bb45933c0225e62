// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "lrp_copilot"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec
	TrialsTotal        prometheus.Counter
	TruncatedTotal     prometheus.Counter
	LastHitProbability prometheus.Gauge

	// Analysis metrics
	RunsTotal        *prometheus.CounterVec
	OptionsEvaluated prometheus.Counter

	// Interface metrics
	ToolCalls    *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of Monte Carlo simulations by kind",
		}, []string{"kind"}),
		SimulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation wall time in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"kind"}),
		TrialsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trials_total",
			Help:      "Total number of Monte Carlo trials drawn",
		}),
		TruncatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "truncated_total",
			Help:      "Total number of simulations cut short by cancellation",
		}),
		LastHitProbability: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "last_probability_of_hit",
			Help:      "Probability of hit of the most recent simulation",
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of registered analysis runs by final status",
		}, []string{"status"}),
		OptionsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "options_evaluated_total",
			Help:      "Total number of strategic options simulated",
		}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total number of MCP tool calls by tool and outcome",
		}, []string{"tool", "outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSimulation records one engine run.
func (m *Metrics) RecordSimulation(kind string, trials int, hitProbability float64, truncated bool, d time.Duration) {
	if m == nil {
		return
	}
	m.SimulationsTotal.WithLabelValues(kind).Inc()
	m.SimulationDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.TrialsTotal.Add(float64(trials))
	m.LastHitProbability.Set(hitProbability)
	if truncated {
		m.TruncatedTotal.Inc()
	}
}

// RecordRun records a finished analysis run.
func (m *Metrics) RecordRun(status string, options int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.OptionsEvaluated.Add(float64(options))
}

// RecordToolCall records an MCP tool invocation.
func (m *Metrics) RecordToolCall(tool string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordHTTP records an HTTP request.
func (m *Metrics) RecordHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
