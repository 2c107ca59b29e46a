package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the fault and audit core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ErrorsClassified     *prometheus.CounterVec
	ErrorsPresented      *prometheus.CounterVec
	ErrorsEvicted        prometheus.Counter
	SecurityEvents       *prometheus.CounterVec
	SuspiciousFlagged    prometheus.Counter
	SecurityEvicted      prometheus.Counter
	RetryAttempts        *prometheus.CounterVec
	ForwarderPersisted   prometheus.Counter
	ForwarderDropped     prometheus.Counter
	ForwarderFailures    prometheus.Counter
	ForwarderCircuitOpen prometheus.Gauge
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in main and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ErrorsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_errors_classified_total",
			Help: "Total number of faults classified, by kind and severity",
		}, []string{"kind", "severity"}),
		ErrorsPresented: f.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_errors_presented_total",
			Help: "Total number of classified errors dispatched, by presentation mode",
		}, []string{"mode"}),
		ErrorsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_errors_evicted_total",
			Help: "Total number of error log entries removed by age-based cleanup",
		}),
		SecurityEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_security_events_total",
			Help: "Total number of security audit events recorded, by type and risk level",
		}, []string{"type", "risk"}),
		SuspiciousFlagged: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_security_suspicious_total",
			Help: "Total number of suspicious activity events synthesized by the detector",
		}),
		SecurityEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_security_events_evicted_total",
			Help: "Total number of security audit events removed by age-based cleanup",
		}),
		RetryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_retry_attempts_total",
			Help: "Total number of operation attempts made by the retry helper, by outcome",
		}, []string{"outcome"}),
		ForwarderPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_forwarder_persisted_total",
			Help: "Total number of audit events written to durable sinks",
		}),
		ForwarderDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_forwarder_dropped_total",
			Help: "Total number of audit events dropped before reaching durable sinks",
		}),
		ForwarderFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "courtside_forwarder_failures_total",
			Help: "Total number of failed batch writes to durable sinks",
		}),
		ForwarderCircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_forwarder_circuit_open",
			Help: "Current forwarder circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

// IncErrorClassified counts one classification.
func (m *Metrics) IncErrorClassified(kind, severity string) {
	if m == nil {
		return
	}
	m.ErrorsClassified.WithLabelValues(kind, severity).Inc()
}

// IncErrorPresented counts one dispatch by presentation mode.
func (m *Metrics) IncErrorPresented(mode string) {
	if m == nil {
		return
	}
	m.ErrorsPresented.WithLabelValues(mode).Inc()
}

// AddErrorsEvicted adds n evicted error log entries.
func (m *Metrics) AddErrorsEvicted(n int) {
	if m == nil {
		return
	}
	m.ErrorsEvicted.Add(float64(n))
}

// IncSecurityEvent counts one recorded audit event.
func (m *Metrics) IncSecurityEvent(eventType, risk string) {
	if m == nil {
		return
	}
	m.SecurityEvents.WithLabelValues(eventType, risk).Inc()
}

// IncSuspiciousFlagged counts one synthesized suspicious activity event.
func (m *Metrics) IncSuspiciousFlagged() {
	if m == nil {
		return
	}
	m.SuspiciousFlagged.Inc()
}

// AddSecurityEvicted adds n evicted audit events.
func (m *Metrics) AddSecurityEvicted(n int) {
	if m == nil {
		return
	}
	m.SecurityEvicted.Add(float64(n))
}

// IncRetryAttempt counts one attempt with outcome "success", "failure" or "cancelled".
func (m *Metrics) IncRetryAttempt(outcome string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(outcome).Inc()
}

// AddForwarderPersisted adds n events written to sinks.
func (m *Metrics) AddForwarderPersisted(n int) {
	if m == nil {
		return
	}
	m.ForwarderPersisted.Add(float64(n))
}

// AddForwarderDropped adds n events dropped before persistence.
func (m *Metrics) AddForwarderDropped(n int) {
	if m == nil {
		return
	}
	m.ForwarderDropped.Add(float64(n))
}

// IncForwarderFailures counts one failed batch write.
func (m *Metrics) IncForwarderFailures() {
	if m == nil {
		return
	}
	m.ForwarderFailures.Inc()
}

// SetForwarderCircuitOpen sets the circuit breaker state gauge.
func (m *Metrics) SetForwarderCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.ForwarderCircuitOpen.Set(1)
	} else {
		m.ForwarderCircuitOpen.Set(0)
	}
}
