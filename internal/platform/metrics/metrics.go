// Package metrics registers all Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CheckInsAccepted prometheus.Counter
	CheckInsRejected *prometheus.CounterVec
	FraudSignals     *prometheus.CounterVec
	SyncItems        *prometheus.CounterVec
	AuditAppends     prometheus.Counter

	// ControlDegraded counts fail-open events: a secondary integrity control
	// (fraud lookup, audit append, device gate) errored but the primary
	// action proceeded. Separate from primary-path failures so degraded
	// coverage is auditable.
	ControlDegraded *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CheckInsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "haazri_checkins_accepted_total",
			Help: "Total accepted online check-ins.",
		}),
		CheckInsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "haazri_checkins_rejected_total",
			Help: "Total rejected online check-ins by reason.",
		}, []string{"reason"}),
		FraudSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "haazri_fraud_signals_total",
			Help: "Total fraud signals recorded by severity.",
		}, []string{"severity"}),
		SyncItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "haazri_sync_items_total",
			Help: "Total offline sync items processed by outcome.",
		}, []string{"outcome"}),
		AuditAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "haazri_audit_appends_total",
			Help: "Total audit chain entries appended.",
		}),
		ControlDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "haazri_integrity_control_degraded_total",
			Help: "Total fail-open events where an integrity control errored but the primary action proceeded.",
		}, []string{"control"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "haazri_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
