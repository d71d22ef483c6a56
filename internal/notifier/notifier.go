// Package notifier provides async webhook delivery of release events.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"releaser/pkg/backoff"
	"releaser/pkg/circuitbreaker"
	"releaser/pkg/cloudevent"
)

// ErrBufferFull is returned when the notifier's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("notifier buffer full, event dropped")

// Notifier handles async delivery of release events.
// Delivery is best-effort: failures never influence the pipeline outcome.
type Notifier interface {
	// Publish queues an event for async delivery. Non-blocking.
	// Returns ErrBufferFull if the event cannot be queued.
	Publish(event *cloudevent.CloudEvent) error

	// Stats returns current notifier statistics.
	Stats() Stats

	// Close gracefully shuts down, attempting to deliver queued events.
	// The context deadline controls how long to wait for drain.
	Close(ctx context.Context) error
}

// Stats holds notifier statistics.
type Stats struct {
	QueueDepth   int    // current queue size
	Queued       int64  // total events queued
	Delivered    int64  // successful deliveries
	Failed       int64  // failed after retries
	Dropped      int64  // dropped due to full buffer or open circuit
	RetriesTotal int64  // total retry attempts
	BreakerState string // circuit breaker state
}

// MetricsRecorder is an optional interface for recording notifier metrics.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context)
	RecordNotifyDropped(ctx context.Context)
}

// Webhook delivers release events to a single webhook destination.
// Events are queued in a bounded channel and delivered by a worker pool.
// If the buffer is full, events are dropped (logged + metric incremented).
type Webhook struct {
	queue   chan *cloudevent.CloudEvent
	sender  *cloudevent.Sender
	breaker *circuitbreaker.Breaker
	retry   backoff.Policy
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	// Internal counters (for Stats())
	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewWebhook creates a webhook notifier and starts its workers.
func NewWebhook(cfg Config, metrics MetricsRecorder) *Webhook {
	cfg = cfg.withDefaults()

	n := &Webhook{
		queue:  make(chan *cloudevent.CloudEvent, cfg.BufferSize),
		sender: cloudevent.NewSender(cfg.HTTPTimeout, cfg.SigningKey),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		config:   cfg,
		logger:   slog.With("component", "notifier"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	// Start workers
	n.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go n.worker()
	}

	n.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return n
}

// Publish queues an event for async delivery. Events not matching the
// configured type filter are skipped without error.
func (n *Webhook) Publish(event *cloudevent.CloudEvent) error {
	if n.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}
	if !n.wants(event.Type) {
		return nil
	}

	select {
	case n.queue <- event:
		n.queued.Add(1)
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyDropped(context.Background())
		}
		n.logger.Warn("Event dropped, buffer full", "type", event.Type)
		return ErrBufferFull
	}
}

// wants reports whether the event type passes the configured filter.
// An empty filter allows all events.
func (n *Webhook) wants(eventType string) bool {
	if len(n.config.EventTypes) == 0 {
		return true
	}
	return slices.Contains(n.config.EventTypes, eventType)
}

// Stats returns current notifier statistics.
func (n *Webhook) Stats() Stats {
	return Stats{
		QueueDepth:   len(n.queue),
		Queued:       n.queued.Load(),
		Delivered:    n.delivered.Load(),
		Failed:       n.failed.Load(),
		Dropped:      n.dropped.Load(),
		RetriesTotal: n.retriesTotal.Load(),
		BreakerState: n.breaker.State().String(),
	}
}

// Close gracefully shuts down the notifier.
func (n *Webhook) Close(ctx context.Context) error {
	if n.closed.Swap(true) {
		return nil // already closed
	}

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))

	// Signal workers to stop
	close(n.shutdown)

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"failed", n.failed.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

// worker processes events from the queue.
func (n *Webhook) worker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.shutdown:
			// Drain remaining events before exiting
			n.drainQueue()
			return
		case event := <-n.queue:
			n.deliver(event)
		}
	}
}

// drainQueue delivers remaining events after shutdown signal.
func (n *Webhook) drainQueue() {
	for {
		select {
		case event := <-n.queue:
			n.deliver(event)
		default:
			return // queue empty
		}
	}
}

// deliver attempts to deliver an event with retry and circuit breaker.
// There is no requeue path: an open circuit drops the event.
func (n *Webhook) deliver(event *cloudevent.CloudEvent) {
	if !n.breaker.Allow() {
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyDropped(context.Background())
		}
		n.logger.Warn("Event dropped, circuit open", "type", event.Type)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	start := time.Now()
	if err := n.sendWithRetry(ctx, event); err != nil {
		n.breaker.RecordFailure()
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyFailed(ctx)
		}
		n.logger.Warn("Delivery failed", "type", event.Type, "error", err)
		return
	}

	n.breaker.RecordSuccess()
	n.delivered.Add(1)
	if n.metrics != nil {
		n.metrics.RecordNotifyDelivered(ctx, time.Since(start).Seconds())
	}
}

func (n *Webhook) sendWithRetry(ctx context.Context, event *cloudevent.CloudEvent) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			n.retriesTotal.Add(1)
			if err := n.retry.Sleep(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = n.sender.Send(ctx, n.config.URL, event)
		if lastErr == nil {
			return nil
		}
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Verify Webhook implements Notifier
var _ Notifier = (*Webhook)(nil)
