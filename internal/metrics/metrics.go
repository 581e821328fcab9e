// Package metrics exposes Prometheus counters for generation requests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeDenied      = "denied"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics records generation outcomes, latency, tokens and cost.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	cost     *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer, or with
// the default registerer when nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spaceify_generation_requests_total",
		Help: "Generation requests by action and outcome.",
	}, []string{"action", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spaceify_generation_duration_seconds",
		Help:    "Generation request latency including provider time.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"action"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spaceify_generation_tokens_total",
		Help: "Provider tokens consumed by action and model.",
	}, []string{"action", "model"})
	cost := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spaceify_generation_cost_usd_total",
		Help: "Provider cost in USD by action.",
	}, []string{"action"})

	registerer.MustRegister(requests, duration, tokens, cost)

	return &Metrics{
		requests: requests,
		duration: duration,
		tokens:   tokens,
		cost:     cost,
	}
}

// ObserveRequest counts one request and its latency.
func (m *Metrics) ObserveRequest(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// AddUsage adds provider usage. Zero usage, as from a cache hit, is skipped.
func (m *Metrics) AddUsage(action, model string, tokens int64, costUSD float64) {
	if m == nil || tokens <= 0 {
		return
	}
	m.tokens.WithLabelValues(action, model).Add(float64(tokens))
	if costUSD > 0 {
		m.cost.WithLabelValues(action).Add(costUSD)
	}
}

// Requests returns the request counter for action and outcome.
func (m *Metrics) Requests(action, outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(action, outcome)
}
