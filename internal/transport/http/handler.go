package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"courtside/internal/errorhandling"
	"courtside/internal/securityaudit"
	"courtside/pkg/fault"
	"courtside/pkg/platform/httputil"
	"courtside/pkg/requestcontext"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxEventsLimit     = 500
)

// ErrorService is the part of the error handler exposed over HTTP.
type ErrorService interface {
	Classify(ctx context.Context, err error, actx errorhandling.Context) errorhandling.AppError
	Dispatch(ctx context.Context, appErr errorhandling.AppError) errorhandling.Presentation
	ErrorStats(window time.Duration) errorhandling.ErrorStats
}

// AuditService is the part of the security audit log exposed over HTTP.
type AuditService interface {
	Record(ctx context.Context, in securityaudit.EventInput) securityaudit.SecurityEvent
	Stats(r *securityaudit.TimeRange) securityaudit.Stats
	RecentForActor(actorID string, limit int) []securityaudit.SecurityEvent
	DetectSuspicious(ctx context.Context, actorID string) bool
	Verify() error
	Len() int
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the fault ingest and dashboard endpoints.
type Handler struct {
	errors ErrorService
	audit  AuditService
	logger *slog.Logger
	checks map[string]HealthCheck
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// New creates a Handler.
func New(errs ErrorService, audit AuditService, opts ...Option) (*Handler, error) {
	if errs == nil {
		return nil, errors.New("error service is required")
	}
	if audit == nil {
		return nil, errors.New("audit service is required")
	}
	h := &Handler{
		errors: errs,
		audit:  audit,
		logger: slog.Default(),
		checks: map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the API endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/faults", h.HandleFault)
	r.Get("/errors/stats", h.HandleErrorStats)

	r.Route("/security", func(r chi.Router) {
		r.Post("/events", h.HandleRecordEvent)
		r.Get("/stats", h.HandleSecurityStats)
		r.Get("/verify", h.HandleVerify)
		r.Get("/actors/{actorID}/events", h.HandleActorEvents)
		r.Post("/actors/{actorID}/suspicious", h.HandleDetectSuspicious)
	})
}

// FaultRequest is a raw failure reported by the console.
type FaultRequest struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Validation bool   `json:"validation"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
}

// FaultResponse tells the console how the failure was presented. It never
// carries internal codes or actor identifiers.
type FaultResponse struct {
	Mode      errorhandling.Mode       `json:"mode"`
	Level     errorhandling.ToastLevel `json:"level,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Retryable bool                     `json:"retryable"`
}

// HandleFault handles POST /api/faults.
func (h *Handler) HandleFault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[FaultRequest](w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	f := fault.New(req.Code, req.Message)
	f.Validation = req.Validation
	appErr := h.errors.Classify(ctx, f, errorhandling.Context{
		Action:   req.Action,
		Resource: req.Resource,
	})
	p := h.errors.Dispatch(ctx, appErr)

	httputil.WriteJSON(w, http.StatusOK, FaultResponse{
		Mode:      p.Mode,
		Level:     p.Level,
		Message:   p.Message,
		Retryable: appErr.Retryable,
	})
}

// HandleErrorStats handles GET /api/errors/stats?window_hours=N.
func (h *Handler) HandleErrorStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			httputil.BadRequest(w, "window_hours must be a positive integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}
	httputil.WriteJSON(w, http.StatusOK, h.errors.ErrorStats(window))
}

// HandleRecordEvent handles POST /api/security/events. A missing actor is
// taken from the request's actor headers.
func (h *Handler) HandleRecordEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := httputil.Decode[securityaudit.EventInput](w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if in.ActorID == "" {
		in.ActorID = requestcontext.ActorID(ctx)
		in.ActorRole = requestcontext.ActorRole(ctx)
	}
	if err := in.Validate(); err != nil {
		h.logger.WarnContext(ctx, "rejected security event",
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
			"error", err,
		)
		httputil.BadRequest(w, "%v", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, h.audit.Record(ctx, in))
}

// HandleSecurityStats handles GET /api/security/stats?start=&end= with
// RFC 3339 bounds. Either bound may be omitted.
func (h *Handler) HandleSecurityStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var rng *securityaudit.TimeRange
	if q.Has("start") || q.Has("end") {
		start, err := parseTime(q.Get("start"))
		if err != nil {
			httputil.BadRequest(w, "start must be an RFC 3339 timestamp")
			return
		}
		end, err := parseTime(q.Get("end"))
		if err != nil {
			httputil.BadRequest(w, "end must be an RFC 3339 timestamp")
			return
		}
		if !end.IsZero() && end.Before(start) {
			httputil.BadRequest(w, "end must not be before start")
			return
		}
		rng = &securityaudit.TimeRange{Start: start, End: end}
	}
	httputil.WriteJSON(w, http.StatusOK, h.audit.Stats(rng))
}

// HandleActorEvents handles GET /api/security/actors/{actorID}/events?limit=N.
func (h *Handler) HandleActorEvents(w http.ResponseWriter, r *http.Request) {
	limit := securityaudit.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventsLimit {
			httputil.BadRequest(w, "limit must be between 1 and %d", maxEventsLimit)
			return
		}
		limit = n
	}
	events := h.audit.RecentForActor(chi.URLParam(r, "actorID"), limit)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleDetectSuspicious handles POST /api/security/actors/{actorID}/suspicious.
func (h *Handler) HandleDetectSuspicious(w http.ResponseWriter, r *http.Request) {
	suspicious := h.audit.DetectSuspicious(r.Context(), chi.URLParam(r, "actorID"))
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"suspicious": suspicious})
}

// HandleVerify handles GET /api/security/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"valid":  true,
		"events": h.audit.Len(),
	}
	if err := h.audit.Verify(); err != nil {
		h.logger.ErrorContext(r.Context(), "audit chain verification failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"log_type", "audit",
			"error", err,
		)
		resp["valid"] = false
		resp["reason"] = err.Error()
		httputil.WriteJSON(w, http.StatusConflict, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "dependencies": results})
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
