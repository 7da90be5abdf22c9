package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/sla-guard/internal/domain"
)

const namespace = "sla_guard"

// Metrics owns a private Prometheus registry with HTTP and monitor collectors.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	tickFailures    prometheus.Counter
	ticketsScanned  prometheus.Counter
	tierTransitions *prometheus.CounterVec
	escalations     *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_tick_duration_seconds",
			Help:      "Duration of SLA monitor ticks.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_tick_failures_total",
			Help:      "Monitor ticks abandoned because active tickets could not be listed.",
		}),
		ticketsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_tickets_scanned_total",
			Help:      "Active tickets evaluated by the monitor.",
		}),
		tierTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_tier_transitions_total",
			Help:      "Persisted risk tier changes by new tier.",
		}, []string{"tier"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation attempts by trigger and result.",
		}, []string{"trigger", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.tickDuration,
		m.tickFailures,
		m.ticketsScanned,
		m.tierTransitions,
		m.escalations,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// ObserveTick records a monitor pass.
func (m *Metrics) ObserveTick(duration time.Duration, scanned int, failed bool) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
	m.ticketsScanned.Add(float64(scanned))
	if failed {
		m.tickFailures.Inc()
	}
}

// ObserveTierTransition counts a persisted tier change.
func (m *Metrics) ObserveTierTransition(tier domain.RiskTier) {
	if m == nil {
		return
	}
	m.tierTransitions.WithLabelValues(string(tier)).Inc()
}

// ObserveEscalation counts an escalation attempt.
func (m *Metrics) ObserveEscalation(trigger string, escalated bool) {
	if m == nil {
		return
	}
	result := "failed"
	if escalated {
		result = "escalated"
	}
	m.escalations.WithLabelValues(trigger, result).Inc()
}
