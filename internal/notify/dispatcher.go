// Package notify carries alert lifecycle events from the engine to external
// sinks without letting sink latency or failures stall evaluation.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

// Sink delivers events to one channel. Sinks must tolerate receiving the
// same alert id more than once.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev domain.AlertEvent) error
}

// Dispatcher is a bounded outbound queue drained by Run.
type Dispatcher struct {
	queue   chan domain.AlertEvent
	sinks   []Sink
	retries uint64
	initial time.Duration
	maxWait time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetry sets the per-sink retry count and backoff bounds.
func WithRetry(retries uint64, initial, maxWait time.Duration) Option {
	return func(d *Dispatcher) {
		d.retries, d.initial, d.maxWait = retries, initial, maxWait
	}
}

func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

func WithMetrics(m *observability.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// NewDispatcher creates a dispatcher whose queue holds size events.
func NewDispatcher(size int, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan domain.AlertEvent, max(size, 1)),
		sinks:   sinks,
		retries: 5,
		initial: 200 * time.Millisecond,
		maxWait: 5 * time.Second,
		logger:  slog.Default(),
		metrics: observability.NewMetricsForTesting(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit enqueues ev without blocking. A full queue drops the event.
func (d *Dispatcher) Emit(ev domain.AlertEvent) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.metrics.NotificationsDropped.Inc()
		d.logger.Warn("notification queue full, dropping event",
			"alert_id", ev.AlertID,
			"kind", ev.Kind,
			"capacity", cap(d.queue),
		)
		return false
	}
}

// Pending is the number of queued events.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.logger.Info("dispatcher stopping with queued events", "pending", n)
			}
			return nil
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

// Drain delivers whatever is still queued, giving up at the deadline.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.AlertEvent) {
	for _, s := range d.sinks {
		op := func() error { return s.Publish(ctx, ev) }
		if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(d.policy(), d.retries), ctx)); err != nil {
			d.metrics.Notifications.WithLabelValues(s.Name(), "error").Inc()
			d.logger.Error("notification delivery failed",
				"sink", s.Name(),
				"alert_id", ev.AlertID,
				"kind", ev.Kind,
				"error", err,
			)
			continue
		}
		d.metrics.Notifications.WithLabelValues(s.Name(), "success").Inc()
	}
}

func (d *Dispatcher) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initial
	b.MaxInterval = d.maxWait
	b.MaxElapsedTime = 0
	return b
}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Publish(_ context.Context, ev domain.AlertEvent) error {
	s.Logger.Info("alert event",
		"alert_id", ev.AlertID,
		"kind", ev.Kind,
		"zone", ev.Zone,
		"threat_type", ev.ThreatType,
		"severity", ev.Severity,
		"confidence", ev.Confidence,
		"recommendations", len(ev.Recommendations),
	)
	return nil
}
