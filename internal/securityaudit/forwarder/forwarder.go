// Package forwarder ships recorded security events to durable sinks without
// slowing down the recorder. Events are queued in a bounded buffer and
// written in batches by a background loop guarded by a circuit breaker.
package forwarder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courtside/internal/platform/metrics"
	"courtside/internal/securityaudit"
)

const (
	DefaultBatchSize    = 100
	DefaultInterval     = time.Second
	defaultDrainTimeout = 5 * time.Second
)

// Store persists batches of events. Implementations must tolerate a batch
// being delivered more than once.
type Store interface {
	AppendBatch(ctx context.Context, events []securityaudit.SecurityEvent) error
}

// Forwarder is a securityaudit.Observer that forwards events to a Store.
type Forwarder struct {
	name      string
	store     Store
	buffer    *Buffer
	breaker   *CircuitBreaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
	capacity  int
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithBufferCapacity bounds the number of events awaiting delivery.
func WithBufferCapacity(n int) Option {
	return func(f *Forwarder) {
		f.capacity = n
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(f *Forwarder) {
		f.breaker = cb
	}
}

// New creates a forwarder named after its sink, for logs.
func New(name string, store Store, opts ...Option) (*Forwarder, error) {
	if store == nil {
		return nil, errors.New("forwarder store is required")
	}
	f := &Forwarder{
		name:      name,
		store:     store,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.buffer = NewBuffer(f.capacity)
	if f.breaker == nil {
		f.breaker = NewCircuitBreaker(0, 0, nil)
	}
	return f, nil
}

// Observe queues an event. It never blocks; when the buffer is full the
// oldest queued event is dropped.
func (f *Forwarder) Observe(_ context.Context, event securityaudit.SecurityEvent) {
	if f.buffer.Enqueue(event) {
		f.metrics.AddForwarderDropped(1)
	}
}

// Pending returns the number of queued events.
func (f *Forwarder) Pending() int {
	return f.buffer.Len()
}

// Run flushes queued events every interval until ctx is done, then makes a
// final bounded attempt to drain the buffer.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDrainTimeout)
			f.Flush(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush writes queued events in batches until the buffer is empty, a write
// fails or the circuit is open. It returns the number of events persisted.
func (f *Forwarder) Flush(ctx context.Context) int {
	persisted := 0
	for f.buffer.Len() > 0 {
		if ctx.Err() != nil || !f.breaker.Allow() {
			return persisted
		}
		batch := f.buffer.DequeueBatch(f.batchSize)
		if err := f.store.AppendBatch(ctx, batch); err != nil {
			open := f.breaker.RecordFailure()
			f.metrics.IncForwarderFailures()
			f.metrics.AddForwarderDropped(len(batch))
			f.metrics.SetForwarderCircuitOpen(open)
			f.logger.ErrorContext(ctx, "failed to forward security events",
				"sink", f.name,
				"batch", len(batch),
				"circuit_open", open,
				"error", err,
			)
			return persisted
		}
		f.breaker.RecordSuccess()
		f.metrics.SetForwarderCircuitOpen(false)
		f.metrics.AddForwarderPersisted(len(batch))
		persisted += len(batch)
	}
	return persisted
}
