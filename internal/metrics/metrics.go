// Package metrics exposes Prometheus metrics for the spaces service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/spaces/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const namespace = "spaces"

// ─── Domain ─────────────────────────────────────────────────────────────────

// DomainEvents counts emitted domain events by type.
var DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "domain",
	Name:      "events_total",
	Help:      "Total domain events emitted, by event type.",
}, []string{"type"})

// Transfers counts finished transfers by outcome (completed, compensated).
var Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "domain",
	Name:      "transfers_total",
	Help:      "Total transfers by outcome.",
}, []string{"outcome"})

// InvariantViolations counts accounts found with mismatched totals.
var InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "domain",
	Name:      "invariant_violations_total",
	Help:      "Total account invariant violations detected.",
})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobRuns counts scheduled job executions by job and status.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "scheduler",
	Name:      "job_runs_total",
	Help:      "Total scheduled job runs by job name and status.",
}, []string{"job", "status"})

// JobDuration tracks job execution time in seconds.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "scheduler",
	Name:      "job_duration_seconds",
	Help:      "Scheduled job duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
}, []string{"job"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts served requests by method, route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks request latency in seconds.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// ObserveJob records one job execution
func ObserveJob(job string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobRuns.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency per chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// EventRecorder turns bus events into metric updates
type EventRecorder struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventRecorder creates a recorder over bus
func NewEventRecorder(bus *events.Bus, log zerolog.Logger) *EventRecorder {
	return &EventRecorder{
		bus: bus,
		log: log.With().Str("component", "metrics_recorder").Logger(),
	}
}

// Run consumes events until ctx is done
func (r *EventRecorder) Run(ctx context.Context) {
	sub := r.bus.Subscribe(256)
	defer sub.Close()

	r.log.Debug().Msg("Recording domain event metrics")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			Record(event)
		}
	}
}

// Record updates the metrics for a single event
func Record(event events.Event) {
	DomainEvents.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case events.TransferCompleted:
		Transfers.WithLabelValues("completed").Inc()
	case events.TransferCompensated:
		Transfers.WithLabelValues("compensated").Inc()
	case events.InvariantViolated:
		InvariantViolations.Inc()
	}
}
