// Package metrics holds the prometheus collectors of the HITL client. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gotrs_hitl"

// Metrics tracks notification, claim and repository activity
type Metrics struct {
	notificationsReceived prometheus.Counter
	assignmentUpdates     *prometheus.CounterVec
	claims                *prometheus.CounterVec
	repositoryFailures    *prometheus.CounterVec
	unread                prometheus.Gauge
	connectionUp          prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		notificationsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "HITL notifications received over the live channel.",
		}),
		assignmentUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_updates_total",
			Help:      "HITL type assignment updates received, by action.",
		}, []string{"action"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Conversation claim attempts, by outcome.",
		}, []string{"outcome"}),
		repositoryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_failures_total",
			Help:      "Failed HITL type repository calls, by operation and kind.",
		}, []string{"operation", "kind"}),
		unread: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unread_notifications",
			Help:      "Unread notifications in the local log.",
		}),
		connectionUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_up",
			Help:      "1 while the live channel is connected.",
		}),
	}
}

func (m *Metrics) NotificationReceived() {
	if m == nil {
		return
	}
	m.notificationsReceived.Inc()
}

func (m *Metrics) AssignmentUpdated(action string) {
	if m == nil {
		return
	}
	m.assignmentUpdates.WithLabelValues(action).Inc()
}

func (m *Metrics) Claim(outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RepositoryFailure(operation, kind string) {
	if m == nil {
		return
	}
	m.repositoryFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(n))
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connectionUp.Set(1)
		return
	}
	m.connectionUp.Set(0)
}
