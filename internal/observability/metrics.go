package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "penalty"

// Metrics holds the Prometheus collectors exposed by the service. Each instance
// owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	adjustments      *prometheus.CounterVec
	violations       *prometheus.CounterVec
	suspensions      *prometheus.CounterVec
	hookFailures     *prometheus.CounterVec
	resetRuns        *prometheus.CounterVec
	resetAccounts    prometheus.Counter
	detectionSkipped *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Failed HTTP requests by error code.",
		}, []string{"path", "method", "code"}),
		adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_adjustments_total",
			Help:      "Ledger rows written by adjustment type.",
		}, []string{"type", "account_kind"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_recorded_total",
			Help:      "Violations recorded by code and detection source.",
		}, []string{"code", "detected_by"}),
		suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspension_transitions_total",
			Help:      "Suspension state changes by direction.",
		}, []string{"account_kind", "direction"}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Failures swallowed by the event hooks.",
		}, []string{"hook"}),
		resetRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_runs_total",
			Help:      "Bulk reset runs by outcome.",
		}, []string{"outcome"}),
		resetAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_accounts_total",
			Help:      "Accounts restored to full points by bulk resets.",
		}),
		detectionSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_deduplicated_total",
			Help:      "Detector invocations skipped because the token was already claimed.",
		}, []string{"detector"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.errors,
		m.adjustments, m.violations, m.suspensions,
		m.hookFailures, m.resetRuns, m.resetAccounts, m.detectionSkipped,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordAdjustment counts one ledger row.
func (m *Metrics) RecordAdjustment(adjustmentType, accountKind string) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(adjustmentType, accountKind).Inc()
}

// RecordViolation counts one recorded violation.
func (m *Metrics) RecordViolation(code, detectedBy string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(code, detectedBy).Inc()
}

// RecordSuspension counts a suspension transition. suspended=false means reactivation.
func (m *Metrics) RecordSuspension(accountKind string, suspended bool) {
	if m == nil {
		return
	}
	direction := "reactivated"
	if suspended {
		direction = "suspended"
	}
	m.suspensions.WithLabelValues(accountKind, direction).Inc()
}

// RecordHookFailure counts an error swallowed by an event hook.
func (m *Metrics) RecordHookFailure(hook string) {
	if m == nil {
		return
	}
	m.hookFailures.WithLabelValues(hook).Inc()
}

// RecordReset counts a bulk reset run and the accounts it restored.
func (m *Metrics) RecordReset(restored int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "partial_failure"
	}
	m.resetRuns.WithLabelValues(outcome).Inc()
	m.resetAccounts.Add(float64(restored))
}

// RecordDuplicateDetection counts a detector call deduplicated by its token.
func (m *Metrics) RecordDuplicateDetection(detector string) {
	if m == nil {
		return
	}
	m.detectionSkipped.WithLabelValues(detector).Inc()
}
