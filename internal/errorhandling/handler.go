package errorhandling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"courtside/internal/platform/metrics"
	"courtside/pkg/attrs"
	"courtside/pkg/platform/ring"
	"courtside/pkg/requestcontext"
)

const (
	// DefaultRetention is how long classified errors are kept.
	DefaultRetention = 168 * time.Hour
	// DefaultRetryHintDelay is the delay before the "you may retry" hint.
	DefaultRetryHintDelay = 2 * time.Second
	// RetryHintMessage is the advisory shown after a retryable error.
	RetryHintMessage = "You can try the action again."
)

// Handler classifies faults, keeps a bounded log of the results and decides
// how each one reaches the user. One Handler is built per process and shared.
type Handler struct {
	presenter      Presenter
	reporter       atomic.Pointer[reporterRef]
	classifier     *Classifier
	log            *ring.Ring[AppError]
	logger         *slog.Logger
	metrics        *metrics.Metrics
	clock          func() time.Time
	schedule       func(time.Duration, func())
	retryHintDelay time.Duration
	capacity       int
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithReporter sets the sink for permission and authorization reports.
func WithReporter(reporter SecurityReporter) Option {
	return func(h *Handler) {
		h.SetReporter(reporter)
	}
}

func WithClassifier(c *Classifier) Option {
	return func(h *Handler) {
		h.classifier = c
	}
}

func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithScheduler replaces time.AfterFunc for the delayed retry hint.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(h *Handler) {
		h.schedule = schedule
	}
}

func WithRetryHintDelay(d time.Duration) Option {
	return func(h *Handler) {
		h.retryHintDelay = d
	}
}

// WithCapacity bounds the error log. Once full the oldest entries are dropped.
func WithCapacity(n int) Option {
	return func(h *Handler) {
		h.capacity = n
	}
}

func New(presenter Presenter, opts ...Option) (*Handler, error) {
	if presenter == nil {
		return nil, errors.New("presenter is required")
	}

	h := &Handler{
		presenter:      presenter,
		classifier:     DefaultClassifier(),
		logger:         slog.Default(),
		clock:          time.Now,
		schedule:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		retryHintDelay: DefaultRetryHintDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = ring.New[AppError](h.capacity)
	return h, nil
}

// reporterRef boxes the reporter interface for atomic replacement.
type reporterRef struct {
	SecurityReporter
}

// SetReporter attaches the security reporter after construction. The audit
// log and the handler reference each other, so one of them is wired late.
// It is safe to call while errors are being dispatched; nil detaches.
func (h *Handler) SetReporter(reporter SecurityReporter) {
	if reporter == nil {
		h.reporter.Store(nil)
		return
	}
	h.reporter.Store(&reporterRef{reporter})
}

// Classify converts err into an AppError and appends it to the error log.
// Actor fields missing from actx are taken from the request context. It never
// panics; a fault that cannot be inspected classifies as unknown.
func (h *Handler) Classify(ctx context.Context, err error, actx Context) AppError {
	if actx.ActorID == "" && actx.ActorRole == "" {
		actx.ActorID = requestcontext.ActorID(ctx)
		actx.ActorRole = requestcontext.ActorRole(ctx)
	}

	out, code, internal := h.inspect(err)
	appErr := h.log.Append(h.now(ctx), func(stamp time.Time) AppError {
		actx.Timestamp = stamp
		return AppError{
			Kind:            out.Kind,
			Severity:        out.Severity,
			Code:            code,
			InternalMessage: internal,
			UserMessage:     out.UserMessage,
			Context:         actx,
			Retryable:       out.Retryable,
			Silent:          out.Silent,
		}
	})

	h.metrics.IncErrorClassified(string(appErr.Kind), string(appErr.Severity))
	h.logClassified(ctx, appErr)
	return appErr
}

// Dispatch presents appErr according to its severity, forwards qualifying
// permission failures to the security reporter and schedules the retry hint.
// The returned presentation is what the user was shown.
func (h *Handler) Dispatch(ctx context.Context, appErr AppError) Presentation {
	p := Decide(appErr)
	h.metrics.IncErrorPresented(string(p.Mode))
	h.present(ctx, p)

	if ref := h.reporter.Load(); ref != nil && shouldReport(appErr) {
		h.report(ctx, ref.SecurityReporter, appErr)
	}

	if !appErr.Silent && appErr.Retryable {
		h.schedule(h.retryHintDelay, func() {
			h.present(context.WithoutCancel(ctx), Presentation{Mode: ModeToast, Level: ToastInfo, Message: RetryHintMessage})
		})
	}
	return p
}

// Handle classifies and dispatches err.
func (h *Handler) Handle(ctx context.Context, err error, actx Context) AppError {
	appErr := h.Classify(ctx, err, actx)
	h.Dispatch(ctx, appErr)
	return appErr
}

// ErrorStats aggregates errors classified within the last window. An empty
// window yields zero counts and empty, non-nil maps.
func (h *Handler) ErrorStats(window time.Duration) ErrorStats {
	stats := newErrorStats()
	for _, e := range h.log.Since(h.clock().Add(-window)) {
		stats.add(e)
	}
	return stats
}

// Cleanup drops errors older than retention and returns how many were
// removed. A non-positive retention uses DefaultRetention.
func (h *Handler) Cleanup(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	n := h.log.EvictBefore(h.clock().Add(-retention))
	h.metrics.AddErrorsEvicted(n)
	return n
}

// Recent returns up to limit errors, newest first.
func (h *Handler) Recent(limit int) []AppError {
	return h.log.Newest(limit, nil)
}

func (h *Handler) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.NowIfSet(ctx); ok {
		return t
	}
	return h.clock()
}

// inspect runs the classifier and extracts the code and technical message.
// Errors whose methods panic degrade to the fallback outcome.
func (h *Handler) inspect(err error) (out Outcome, code, internal string) {
	defer func() {
		if r := recover(); r != nil {
			out, code = Fallback, ""
			internal = fmt.Sprintf("unclassifiable fault: %v", r)
		}
	}()
	if err == nil {
		return Fallback, "", ""
	}
	in := NewInput(err)
	return h.classifier.Classify(in), in.Code, err.Error()
}

func shouldReport(e AppError) bool {
	if !e.Severity.AtLeast(SeverityHigh) {
		return false
	}
	if e.Kind != KindPermission && e.Kind != KindAuthorization {
		return false
	}
	return e.Context.ActorID != "" && e.Context.ActorRole != ""
}

func (h *Handler) present(ctx context.Context, p Presentation) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "presenter panicked", "presentation", p.Mode, "panic", r)
		}
	}()
	switch p.Mode {
	case ModeModal:
		h.presenter.ShowModal(p.Message)
	case ModeToast:
		h.presenter.ShowToast(p.Level, p.Message)
	}
}

func (h *Handler) report(ctx context.Context, reporter SecurityReporter, e AppError) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "security reporter panicked", "panic", r)
		}
	}()
	reporter.ReportDenial(ctx, e)
}

func (h *Handler) logClassified(ctx context.Context, e AppError) {
	args := []any{
		"kind", e.Kind,
		"severity", e.Severity,
		"retryable", e.Retryable,
		"silent", e.Silent,
		"internal_message", e.InternalMessage,
	}
	args = attrs.AppendNonEmpty(args, "code", e.Code)
	args = attrs.AppendNonEmpty(args, "actor_id", e.Context.ActorID)
	args = attrs.AppendNonEmpty(args, "actor_role", e.Context.ActorRole)
	args = attrs.AppendNonEmpty(args, "action", e.Context.Action)
	args = attrs.AppendNonEmpty(args, "resource", e.Context.Resource)
	args = attrs.AppendNonEmpty(args, "request_id", requestcontext.RequestID(ctx))

	var level slog.Level
	switch e.Severity {
	case SeverityCritical:
		level = slog.LevelError
	case SeverityHigh:
		level = slog.LevelWarn
	case SeverityMedium:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}
	h.logger.Log(ctx, level, "error classified", args...)
}
