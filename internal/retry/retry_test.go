package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"courtside/internal/errorhandling"
)

type forwarded struct {
	err  error
	actx errorhandling.Context
}

type recordingReporter struct {
	calls []forwarded
}

func (r *recordingReporter) Handle(_ context.Context, err error, actx errorhandling.Context) errorhandling.AppError {
	r.calls = append(r.calls, forwarded{err: err, actx: actx})
	return errorhandling.AppError{Context: actx}
}

type RetrySuite struct {
	suite.Suite
	reporter *recordingReporter
	waits    []time.Duration
	retrier  *Retrier
}

func TestRetrySuite(t *testing.T) {
	suite.Run(t, new(RetrySuite))
}

func (s *RetrySuite) SetupTest() {
	s.reporter = &recordingReporter{}
	s.waits = nil
	var err error
	s.retrier, err = New(s.reporter,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWait(func(ctx context.Context, d time.Duration) error {
			s.waits = append(s.waits, d)
			return ctx.Err()
		}),
	)
	s.Require().NoError(err)
}

func (s *RetrySuite) TestNewRequiresReporter() {
	_, err := New(nil)
	s.Error(err)
}

func (s *RetrySuite) TestSucceedsAfterTransientFailures() {
	calls := 0
	result, err := Do(context.Background(), s.retrier, Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond},
		errorhandling.Context{Action: "load bookings"},
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("failed to fetch")
			}
			return "bookings", nil
		})

	s.Require().NoError(err)
	s.Equal("bookings", result)
	s.Equal(3, calls)
	s.Empty(s.reporter.calls)
	s.Equal([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, s.waits)
}

func (s *RetrySuite) TestFirstSuccessDoesNotWait() {
	result, err := Do(context.Background(), s.retrier, DefaultPolicy(), errorhandling.Context{},
		func(context.Context) (int, error) { return 42, nil })

	s.Require().NoError(err)
	s.Equal(42, result)
	s.Empty(s.waits)
}

func (s *RetrySuite) TestExhaustionForwardsOnce() {
	failure := errors.New("connection refused")
	calls := 0
	_, err := Do(context.Background(), s.retrier, Policy{MaxAttempts: 3, BaseDelay: time.Second},
		errorhandling.Context{ActorID: "u1", ActorRole: "staff", Action: "save schedule", Resource: "schedules"},
		func(context.Context) (struct{}, error) {
			calls++
			return struct{}{}, failure
		})

	s.ErrorIs(err, failure)
	s.Equal(3, calls)
	s.Equal([]time.Duration{time.Second, 2 * time.Second}, s.waits)
	s.Require().Len(s.reporter.calls, 1)
	s.ErrorIs(s.reporter.calls[0].err, failure)
	s.Equal("save schedule (retries exhausted)", s.reporter.calls[0].actx.Action)
	s.Equal("u1", s.reporter.calls[0].actx.ActorID)
	s.Equal("schedules", s.reporter.calls[0].actx.Resource)
}

func (s *RetrySuite) TestCancellationStopsRetrying() {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, s.retrier, DefaultPolicy(), errorhandling.Context{Action: "load"},
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("timeout")
		})

	s.ErrorIs(err, context.Canceled)
	s.Equal(1, calls)
	s.Empty(s.reporter.calls)
}

func (s *RetrySuite) TestCancelledWaitIsNotForwarded() {
	r, err := New(s.reporter, WithWait(func(context.Context, time.Duration) error { return context.DeadlineExceeded }))
	s.Require().NoError(err)

	calls := 0
	_, err = Do(context.Background(), r, DefaultPolicy(), errorhandling.Context{Action: "load"},
		func(context.Context) (int, error) {
			calls++
			return 0, errors.New("timeout")
		})

	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(1, calls)
	s.Empty(s.reporter.calls)
}

func (s *RetrySuite) TestPreCancelledContextMakesNoAttempt() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result, err := Do(ctx, s.retrier, DefaultPolicy(), errorhandling.Context{Action: "load"},
		func(context.Context) (int, error) {
			calls++
			return 7, nil
		})

	s.ErrorIs(err, context.Canceled)
	s.Zero(result)
	s.Zero(calls)
	s.Empty(s.reporter.calls)
	s.Empty(s.waits)
}

func (s *RetrySuite) TestZeroAttemptsRunsOnce() {
	calls := 0
	_, err := Do(context.Background(), s.retrier, Policy{}, errorhandling.Context{Action: "ping"},
		func(context.Context) (int, error) {
			calls++
			return 0, errors.New("boom")
		})

	s.Error(err)
	s.Equal(1, calls)
	s.Len(s.reporter.calls, 1)
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, sleep(context.Background(), time.Millisecond))
}

func TestExhaustedErrorReachesHandler(t *testing.T) {
	presenter := &countingPresenter{}
	handler, err := errorhandling.New(presenter, errorhandling.WithScheduler(func(time.Duration, func()) {}))
	require.NoError(t, err)
	r, err := New(handler, WithWait(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	_, err = Do(context.Background(), r, DefaultPolicy(), errorhandling.Context{Action: "sync"},
		func(context.Context) (int, error) { return 0, errors.New("Failed to fetch") })
	require.Error(t, err)

	recent := handler.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, errorhandling.KindNetwork, recent[0].Kind)
	assert.Equal(t, "sync (retries exhausted)", recent[0].Context.Action)
	assert.Zero(t, presenter.toasts, "network failures are silent")
}

type countingPresenter struct {
	toasts int
	modals int
}

func (p *countingPresenter) ShowModal(string)                           { p.modals++ }
func (p *countingPresenter) ShowToast(errorhandling.ToastLevel, string) { p.toasts++ }
