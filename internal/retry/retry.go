// Package retry re-runs transiently failing operations with exponential
// backoff and forwards the final failure to the error handler.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"courtside/internal/errorhandling"
	"courtside/internal/platform/metrics"
)

const exhaustedSuffix = " (retries exhausted)"

// Policy bounds a retry run. Attempt k+1 waits BaseDelay*2^(k-1) after
// attempt k fails.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy allows three attempts, waiting 1s then 2s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay returns the wait before the attempt following attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Reporter receives the error of an exhausted run. *errorhandling.Handler
// satisfies it.
type Reporter interface {
	Handle(ctx context.Context, err error, actx errorhandling.Context) errorhandling.AppError
}

// Retrier runs operations under a Policy.
type Retrier struct {
	reporter Reporter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	wait     func(ctx context.Context, d time.Duration) error
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retrier) {
		r.metrics = m
	}
}

// WithWait replaces the backoff sleep. The function must return ctx.Err()
// when ctx is cancelled before d elapses.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		r.wait = wait
	}
}

// New creates a Retrier that forwards exhausted failures to reporter.
func New(reporter Reporter, opts ...Option) (*Retrier, error) {
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	r := &Retrier{
		reporter: reporter,
		logger:   slog.Default(),
		tracer:   otel.Tracer("courtside/retry"),
		wait:     sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Do runs op until it succeeds or policy.MaxAttempts attempts have failed.
// The first success is returned unchanged. After the last failure the error
// is forwarded once to the reporter, with the action marked as exhausted,
// and returned as is. Once ctx is cancelled no further attempt is made:
// the pending wait is aborted and ctx.Err() is returned without forwarding
// anything.
func Do[T any](ctx context.Context, r *Retrier, policy Policy, actx errorhandling.Context, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(policy.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := r.wait(ctx, policy.Delay(attempt-1)); err != nil {
				r.metrics.IncRetryAttempt("cancelled")
				r.logger.DebugContext(ctx, "retry cancelled",
					"action", actx.Action,
					"attempt", attempt,
				)
				return zero, err
			}
		}

		if err := ctx.Err(); err != nil {
			r.metrics.IncRetryAttempt("cancelled")
			return zero, err
		}

		result, err := runAttempt(ctx, r, attempt, attempts, actx, op)
		if err == nil {
			r.metrics.IncRetryAttempt("success")
			return result, nil
		}
		if ctx.Err() != nil {
			r.metrics.IncRetryAttempt("cancelled")
			return zero, ctx.Err()
		}
		lastErr = err
		r.metrics.IncRetryAttempt("failure")
		r.logger.DebugContext(ctx, "attempt failed",
			"action", actx.Action,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
	}

	r.metrics.IncRetryAttempt("exhausted")
	exhausted := actx
	exhausted.Action = actx.Action + exhaustedSuffix
	r.reporter.Handle(ctx, lastErr, exhausted)
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, r *Retrier, n, limit int, actx errorhandling.Context, op func(context.Context) (T, error)) (T, error) {
	ctx, span := r.tracer.Start(ctx, "retry.attempt", trace.WithAttributes(
		attribute.String("action", actx.Action),
		attribute.Int("attempt", n),
		attribute.Int("max_attempts", limit),
	))
	defer span.End()

	result, err := op(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
