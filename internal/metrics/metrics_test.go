package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRequest("layoutGeneration", OutcomeSuccess, 2*time.Second)
	m.ObserveRequest("layoutGeneration", OutcomeSuccess, time.Second)
	m.ObserveRequest("layoutGeneration", OutcomeDenied, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("layoutGeneration", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("layoutGeneration", OutcomeDenied)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestAddUsage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddUsage("imageAnalysis", "gpt-4o", 1500, 0.0075)
	m.AddUsage("imageAnalysis", "gpt-4o", 0, 0)

	assert.Equal(t, 1500.0, testutil.ToFloat64(m.tokens.WithLabelValues("imageAnalysis", "gpt-4o")))
	assert.InDelta(t, 0.0075, testutil.ToFloat64(m.cost.WithLabelValues("imageAnalysis")), 1e-12)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("layoutGeneration", OutcomeError, time.Second)
		m.AddUsage("layoutGeneration", "x", 10, 1)
	})
}
