package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveEscalation("auto", true)
	m.ObserveEscalation("auto", false)
	m.ObserveEscalation("auto", true)
	m.ObserveTierTransition(domain.RiskTierHighRisk)
	m.ObserveTick(50*time.Millisecond, 4, false)
	m.ObserveTick(time.Millisecond, 0, true)
	m.RecordRequest("/tickets/:id", "GET", 200, time.Millisecond)
	m.RecordError("/tickets/:id", "GET", "NOT_FOUND")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.escalations.WithLabelValues("auto", "escalated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalations.WithLabelValues("auto", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierTransitions.WithLabelValues("HIGH_RISK")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ticketsScanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/tickets/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/tickets/:id", "GET", "NOT_FOUND")))
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveTierTransition(domain.RiskTierBreached)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sla_guard_risk_tier_transitions_total{tier="BREACHED"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.ObserveEscalation("manual", true)
		m.ObserveTick(0, 0, false)
	})
}
