package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-autoclose/internal/events"
)

// Metrics holds the Prometheus collectors for the closure job and admin API.
type Metrics struct {
	gatherer      prometheus.Gatherer
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	tickets       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	requests      *prometheus.CounterVec
	errors        *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry labelled with the
// service name and environment.
func NewMetrics(serviceName, environment string) *Metrics {
	registry := prometheus.NewRegistry()
	return newMetrics(registry, registry, prometheus.Labels{"service": serviceName, "env": environment})
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer, constLabels prometheus.Labels) *Metrics {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "autoclose_runs_total",
			Help:        "Inactivity closure runs by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // completed | cancelled | selection_failed
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "autoclose_run_duration_seconds",
			Help:        "Wall time of a closure run.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			ConstLabels: constLabels,
		},
	)
	tickets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "autoclose_tickets_total",
			Help:        "Selected tickets by disposition.",
			ConstLabels: constLabels,
		},
		[]string{"disposition"},
	)
	notifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "autoclose_notifications_total",
			Help:        "Closure notifications by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "autoclose_http_requests_total",
			Help:        "Admin API requests.",
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "status"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "autoclose_http_errors_total",
			Help:        "Admin API errors by code.",
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "code"},
	)

	registerer.MustRegister(runs, runDuration, tickets, notifications, requests, errs)

	return &Metrics{
		gatherer:      gatherer,
		runs:          runs,
		runDuration:   runDuration,
		tickets:       tickets,
		notifications: notifications,
		requests:      requests,
		errors:        errs,
	}
}

// RegisterHandlers subscribes the collectors to closure events.
func (m *Metrics) RegisterHandlers(dispatcher events.Dispatcher) {
	if m == nil || dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketAutoClosed, m.handleTicketAutoClosed)
	dispatcher.Subscribe(events.EventClosureTicketSkipped, m.handleTicketSkipped)
	dispatcher.Subscribe(events.EventClosureNotification, m.handleNotification)
	dispatcher.Subscribe(events.EventClosureRunCompleted, m.handleRunCompleted)
	dispatcher.Subscribe(events.EventClosureRunFailed, m.handleRunFailed)
}

func (m *Metrics) handleTicketAutoClosed(context.Context, events.Event) error {
	m.tickets.WithLabelValues("CLOSED").Inc()
	return nil
}

func (m *Metrics) handleTicketSkipped(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.ClosureTicketSkippedPayload); ok {
		m.tickets.WithLabelValues(string(payload.Disposition)).Inc()
	}
	return nil
}

func (m *Metrics) handleNotification(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.ClosureNotificationPayload); ok {
		m.notifications.WithLabelValues(string(payload.Outcome)).Inc()
	}
	return nil
}

func (m *Metrics) handleRunCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClosureRunCompletedPayload)
	if !ok {
		return nil
	}
	m.ObserveRun(payload.Report.FinishedAt.Sub(payload.Report.StartedAt), payload.Report.Cancelled)
	return nil
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(duration time.Duration, cancelled bool) {
	if m == nil {
		return
	}
	result := "completed"
	if cancelled {
		result = "cancelled"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) handleRunFailed(context.Context, events.Event) error {
	m.runs.WithLabelValues("selection_failed").Inc()
	return nil
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
