// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/authcore/pkg/errutil"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 30 * time.Second

// Metrics counts deliveries by event type and outcome.
type Metrics struct {
	Deliveries *prometheus.CounterVec
}

// NewMetrics creates and registers dispatcher metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_notifications_total",
				Help: "Notification deliveries by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
	reg.MustRegister(m.Deliveries)
	return m
}

func (m *Metrics) record(eventType, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(eventType, outcome).Inc()
}

// Dispatcher sends events in the background. Dispatch never blocks on the
// sender and delivery failures are only logged.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	metrics *Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithMetrics records deliveries in m.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher delivering through sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("sender is required")
	}
	d := &Dispatcher{
		sender:  sender,
		logger:  slog.Default(),
		timeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("logger is required")
	}
	if d.timeout <= 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("timeout", d.timeout).Errorf("send timeout must be positive")
	}
	return d, nil
}

// Dispatch queues event for delivery and returns immediately. Events
// dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("notification dropped, dispatcher closed", "type", event.Type, "uid", event.User.UID)
		d.metrics.record(event.Type, "dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.deliver(event)
}

func (d *Dispatcher) deliver(event Event) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.send(ctx, event)
	if err != nil {
		errutil.LogError(ctx, d.logger, "notification delivery failed", err,
			"type", event.Type, "uid", event.User.UID)
		d.metrics.record(event.Type, "failed")
		return
	}
	d.metrics.record(event.Type, "sent")
}

func (d *Dispatcher) send(ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("NOTIFY_SENDER_PANIC").Errorf("sender panicked: %v", r)
		}
	}()
	if err := d.sender.Send(ctx, event); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("type", event.Type).Wrap(err)
	}
	return nil
}

// Close stops accepting events and waits for in-flight deliveries until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}
