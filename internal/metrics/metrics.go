// Package metrics exposes Prometheus counters for ticket mutations,
// report runs and notifications.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clubledger"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry             *prometheus.Registry
	ticketMutations      *prometheus.CounterVec
	ticketsPurged        prometheus.Counter
	reportRuns           *prometheus.CounterVec
	reportDuration       prometheus.Histogram
	notificationsSent    prometheus.Counter
	notificationFailures prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ticketMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_mutations_total",
			Help:      "Ticket writes by operation and category.",
		}, []string{"operation", "category"}),
		ticketsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_purged_total",
			Help:      "Tickets removed by bulk purges.",
		}),
		reportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Monthly report runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_run_duration_seconds",
			Help:      "Wall time of report runs that produced an artifact.",
			Buckets:   prometheus.DefBuckets,
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Report notifications queued or delivered.",
		}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Report notifications that could not be queued or delivered.",
		}),
	}
	reg.MustRegister(
		m.ticketMutations, m.ticketsPurged, m.reportRuns, m.reportDuration,
		m.notificationsSent, m.notificationFailures,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TicketMutation(op, category string) {
	if m == nil {
		return
	}
	m.ticketMutations.WithLabelValues(op, category).Inc()
}

func (m *Metrics) TicketsPurged(n int) {
	if m == nil {
		return
	}
	m.ticketsPurged.Add(float64(n))
}

func (m *Metrics) ReportRun(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.reportRuns.WithLabelValues(mode, outcome).Inc()
	if seconds > 0 {
		m.reportDuration.Observe(seconds)
	}
}

func (m *Metrics) Notifications(sent, failed int) {
	if m == nil {
		return
	}
	m.notificationsSent.Add(float64(sent))
	m.notificationFailures.Add(float64(failed))
}
