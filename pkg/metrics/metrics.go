package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// decision outcomes
const (
	Allowed = "allowed"
	Denied  = "denied"
)

// Metrics holds the collectors of this service, registered
// on a private registry
type Metrics struct {
	// authorization
	LockDecisionsTotal   *prometheus.CounterVec
	AccessDecisionsTotal *prometheus.CounterVec

	// quiz attempts
	AttemptsStartedTotal   prometheus.Counter
	AttemptsCompletedTotal prometheus.Counter

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		LockDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbook_lock_decisions_total",
				Help: "Total number of lock engine decisions",
			},
			[]string{"kind", "op", "outcome"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbook_access_decisions_total",
				Help: "Total number of role based authorization decisions",
			},
			[]string{"entity", "op", "outcome"},
		),
		AttemptsStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "handbook_quiz_attempts_started_total",
				Help: "Total number of started quiz attempts",
			},
		),
		AttemptsCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "handbook_quiz_attempts_completed_total",
				Help: "Total number of completed quiz attempts",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbook_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handbook_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.LockDecisionsTotal,
		m.AccessDecisionsTotal,
		m.AttemptsStartedTotal,
		m.AttemptsCompletedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLock counts a lock engine decision
func (m *Metrics) ObserveLock(kind, op string, allowed bool) {
	m.LockDecisionsTotal.WithLabelValues(kind, op, outcome(allowed)).Inc()
}

// ObserveAccess counts a role based authorization decision
func (m *Metrics) ObserveAccess(entity, op string, allowed bool) {
	m.AccessDecisionsTotal.WithLabelValues(entity, op, outcome(allowed)).Inc()
}

// ObserveAttempt counts a quiz attempt transition
func (m *Metrics) ObserveAttempt(completed bool) {
	if completed {
		m.AttemptsCompletedTotal.Inc()
		return
	}

	m.AttemptsStartedTotal.Inc()
}

// ObserveRequest records a handled HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func outcome(allowed bool) string {
	if allowed {
		return Allowed
	}

	return Denied
}
