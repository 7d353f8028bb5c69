package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	ticketEvents     *prometheus.CounterVec
	versionConflicts prometheus.Counter
	sweepDuration    prometheus.Histogram
	sweepChecked     prometheus.Gauge
	sweepFlipped     *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpdesk_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_http_errors_total",
				Help: "API errors by error code",
			},
			[]string{"method", "route", "code"},
		),
		ticketEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_ticket_events_total",
				Help: "Ticket events published, by type",
			},
			[]string{"type"},
		),
		versionConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helpdesk_ticket_version_conflicts_total",
				Help: "Ticket updates rejected because of a stale version",
			},
		),
		sweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "helpdesk_sla_sweep_duration_seconds",
				Help:    "Duration of SLA breach sweeps",
				Buckets: prometheus.DefBuckets,
			},
		),
		sweepChecked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helpdesk_sla_sweep_checked_tickets",
				Help: "Active tickets examined by the last sweep",
			},
		),
		sweepFlipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_sla_breach_flags_changed_total",
				Help: "Breach flags changed by sweeps, by direction",
			},
			[]string{"breached"},
		),
	}
}

// RecordRequest records a served request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordTicketEvent counts a published ticket event.
func (m *Metrics) RecordTicketEvent(eventType string) {
	if m == nil {
		return
	}
	m.ticketEvents.WithLabelValues(eventType).Inc()
}

// RecordVersionConflict counts a rejected stale update.
func (m *Metrics) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

// RecordSweep records one completed breach sweep.
func (m *Metrics) RecordSweep(duration time.Duration, checked, breached, cleared int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepChecked.Set(float64(checked))
	m.sweepFlipped.WithLabelValues("true").Add(float64(breached))
	m.sweepFlipped.WithLabelValues("false").Add(float64(cleared))
}
