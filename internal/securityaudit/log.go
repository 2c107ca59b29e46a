package securityaudit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtside/internal/platform/metrics"
	"courtside/pkg/attrs"
	"courtside/pkg/platform/ring"
	"courtside/pkg/requestcontext"
)

const (
	// DefaultRetention is how long audit events are kept.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultRecentLimit caps RecentForActor when no limit is given.
	DefaultRecentLimit = 50
	// DefaultSuspiciousWindow is how many of an actor's latest events the
	// detector looks at.
	DefaultSuspiciousWindow = 10
	// DefaultSuspiciousThreshold is how many denials within the window flag
	// an actor.
	DefaultSuspiciousThreshold = 5
	// DefaultDetectorRole is reported as the actor role of synthesized
	// suspicious activity events.
	DefaultDetectorRole = "system"

	// SuspiciousAction is the action of events synthesized by the detector.
	SuspiciousAction = "detect_suspicious_activity"
)

// Observer is notified synchronously of every recorded event.
type Observer interface {
	Observe(ctx context.Context, event SecurityEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event SecurityEvent)

func (f ObserverFunc) Observe(ctx context.Context, event SecurityEvent) {
	f(ctx, event)
}

type subscription struct {
	id       int
	observer Observer
}

// Log is the in-process security audit trail. Events are kept in insertion
// order, which is also timestamp order, and are chained by hash. One Log is
// built per process and shared.
type Log struct {
	events *ring.Ring[SecurityEvent]

	obsMu     sync.RWMutex
	observers []subscription
	nextObsID int

	// detectMu serializes DetectSuspicious so concurrent checks for the same
	// actor record at most one flag.
	detectMu sync.Mutex

	highRisk     Observer
	logger       *slog.Logger
	metrics      *metrics.Metrics
	clock        func() time.Time
	newID        func() string
	capacity     int
	window       int
	threshold    int
	detectorRole string
}

type Option func(*Log)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		l.clock = clock
	}
}

// WithIDGenerator replaces the UUIDv7 event id generator.
func WithIDGenerator(newID func() string) Option {
	return func(l *Log) {
		l.newID = newID
	}
}

// WithCapacity bounds the log. Once full the oldest events are dropped.
func WithCapacity(n int) Option {
	return func(l *Log) {
		l.capacity = n
	}
}

// WithHighRiskHandler sets the hook invoked for high and critical events,
// after the regular observers.
func WithHighRiskHandler(h Observer) Option {
	return func(l *Log) {
		l.highRisk = h
	}
}

// WithSuspiciousThreshold flags an actor when threshold of their latest
// window events were denied.
func WithSuspiciousThreshold(window, threshold int) Option {
	return func(l *Log) {
		if window > 0 {
			l.window = window
		}
		if threshold > 0 {
			l.threshold = threshold
		}
	}
}

// WithDetectorRole sets the actor role reported on synthesized suspicious
// activity events.
func WithDetectorRole(role string) Option {
	return func(l *Log) {
		if role != "" {
			l.detectorRole = role
		}
	}
}

func New(opts ...Option) *Log {
	l := &Log{
		logger:       slog.Default(),
		clock:        time.Now,
		newID:        newEventID,
		window:       DefaultSuspiciousWindow,
		threshold:    DefaultSuspiciousThreshold,
		detectorRole: DefaultDetectorRole,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.events = ring.New[SecurityEvent](l.capacity)
	return l
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Subscribe registers an observer and returns a function that removes it.
func (l *Log) Subscribe(o Observer) (unsubscribe func()) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	l.nextObsID++
	id := l.nextObsID
	l.observers = append(l.observers, subscription{id: id, observer: o})

	return func() {
		l.obsMu.Lock()
		defer l.obsMu.Unlock()
		for i, sub := range l.observers {
			if sub.id == id {
				l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
				return
			}
		}
	}
}

// Record assigns an id and timestamp to in, appends it to the log and
// notifies observers. Client IP and user agent missing from the details are
// taken from the request context. The stored event is returned.
func (l *Log) Record(ctx context.Context, in EventInput) SecurityEvent {
	if in.RiskLevel == "" {
		in.RiskLevel = DefaultRisk(in.Type, in.Result)
	}
	details := in.Details.clone()
	if details.IP == "" {
		details.IP = requestcontext.ClientIP(ctx)
	}
	if details.UserAgent == "" {
		details.UserAgent = requestcontext.UserAgent(ctx)
	}
	details = enrichDetails(details)
	id := l.newID()

	stored := l.events.Update(l.now(ctx), func(stamp time.Time, prev *SecurityEvent) SecurityEvent {
		e := SecurityEvent{
			ID:        id,
			Timestamp: stamp,
			Type:      in.Type,
			ActorID:   in.ActorID,
			ActorRole: in.ActorRole,
			Action:    in.Action,
			Resource:  in.Resource,
			Result:    in.Result,
			RiskLevel: in.RiskLevel,
			Details:   details,
		}
		if prev != nil {
			e.PrevHash = prev.Hash
		}
		e.Hash = hashEvent(e)
		return e
	})

	l.metrics.IncSecurityEvent(string(stored.Type), string(stored.RiskLevel))
	l.logRecorded(ctx, stored)
	l.notify(ctx, stored)
	return stored.Clone()
}

// PermissionDenied records a denied permission check.
func (l *Log) PermissionDenied(ctx context.Context, actorID, actorRole, action, resource, permission string) SecurityEvent {
	return l.Record(ctx, EventInput{
		Type:      EventPermissionDenied,
		ActorID:   actorID,
		ActorRole: actorRole,
		Action:    action,
		Resource:  resource,
		Result:    ResultDenied,
		Details:   Details{RequestedPermission: permission, TargetResource: resource},
	})
}

// UnauthorizedAccess records an attempt to reach a resource outside the
// actor's role.
func (l *Log) UnauthorizedAccess(ctx context.Context, actorID, actorRole, resource, reason string) SecurityEvent {
	return l.Record(ctx, EventInput{
		Type:      EventUnauthorizedAccess,
		ActorID:   actorID,
		ActorRole: actorRole,
		Action:    "access",
		Resource:  resource,
		Result:    ResultDenied,
		Details:   Details{TargetResource: resource, Reason: reason},
	})
}

// RoleChange records actorID assigning newRole to target.
func (l *Log) RoleChange(ctx context.Context, actorID, actorRole, target, newRole string) SecurityEvent {
	return l.Record(ctx, EventInput{
		Type:      EventRoleChange,
		ActorID:   actorID,
		ActorRole: actorRole,
		Action:    "change_role",
		Resource:  "staff",
		Result:    ResultSuccess,
		Details: Details{
			TargetResource: target,
			Extra:          map[string]string{"new_role": newRole},
		},
	})
}

// LoginAttempt records a sign-in attempt by actorID.
func (l *Log) LoginAttempt(ctx context.Context, actorID string, success bool) SecurityEvent {
	result := ResultDenied
	if success {
		result = ResultSuccess
	}
	return l.Record(ctx, EventInput{
		Type:     EventLoginAttempt,
		ActorID:  actorID,
		Action:   "login",
		Resource: "session",
		Result:   result,
	})
}

// Stats aggregates events within r, or the whole retained log if r is nil.
func (l *Log) Stats(r *TimeRange) Stats {
	var events []SecurityEvent
	if r == nil {
		events = l.events.Snapshot()
	} else {
		events = l.events.Between(r.Start, r.End)
	}
	stats := newStats()
	for _, e := range events {
		stats.add(e)
	}
	return stats
}

// RecentForActor returns up to limit of the actor's events, most recent
// first. Events sharing a timestamp keep the order they were recorded in.
// A non-positive limit uses DefaultRecentLimit.
func (l *Log) RecentForActor(actorID string, limit int) []SecurityEvent {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	match := func(e SecurityEvent) bool { return e.ActorID == actorID }
	events := l.events.Newest(limit, match)
	// A limit cutting through a run of equal timestamps would keep the
	// run's newest entries; widen the scan to cover the whole run first.
	for n := limit; len(events) == n && events[n-1].Timestamp.Equal(events[limit-1].Timestamp); {
		n *= 2
		events = l.events.Newest(n, match)
	}
	restoreTieOrder(events)
	if len(events) > limit {
		events = events[:limit]
	}
	return cloneAll(events)
}

// Events returns the events matching f, oldest first. When f.Limit is set
// only the newest f.Limit matches are returned.
func (l *Log) Events(f Filter) []SecurityEvent {
	var matched []SecurityEvent
	for _, e := range l.events.Between(f.Range.Start, f.Range.End) {
		if f.match(e) {
			matched = append(matched, e)
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return cloneAll(matched)
}

// DetectSuspicious flags actorID when at least threshold of their latest
// window events were denied. A positive detection records one
// suspicious_activity event; while that event is still the actor's latest,
// further calls report true without recording again.
func (l *Log) DetectSuspicious(ctx context.Context, actorID string) bool {
	l.detectMu.Lock()
	defer l.detectMu.Unlock()

	recent := l.events.Newest(l.window, func(e SecurityEvent) bool { return e.ActorID == actorID })
	if len(recent) == 0 {
		return false
	}
	if recent[0].Type == EventSuspiciousActivity && recent[0].Action == SuspiciousAction {
		return true
	}

	denied := 0
	for _, e := range recent {
		if e.Result == ResultDenied {
			denied++
		}
	}
	if denied < l.threshold {
		return false
	}

	l.Record(ctx, EventInput{
		Type:      EventSuspiciousActivity,
		ActorID:   actorID,
		ActorRole: l.detectorRole,
		Action:    SuspiciousAction,
		Resource:  "security_audit",
		Result:    ResultSuccess,
		RiskLevel: RiskHigh,
		Details: Details{
			Reason: fmt.Sprintf("%d of the last %d events were denied", denied, len(recent)),
			Extra: map[string]string{
				"denied_count": strconv.Itoa(denied),
				"window":       strconv.Itoa(len(recent)),
			},
		},
	})
	l.metrics.IncSuspiciousFlagged()
	return true
}

// Cleanup drops events older than retention and returns how many were
// removed. A non-positive retention uses DefaultRetention.
func (l *Log) Cleanup(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	n := l.events.EvictBefore(l.clock().Add(-retention))
	l.metrics.AddSecurityEvicted(n)
	return n
}

// Verify checks the hash chain of the retained log.
func (l *Log) Verify() error {
	return VerifyChain(l.events.Snapshot())
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	return l.events.Len()
}

func (l *Log) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.NowIfSet(ctx); ok {
		return t
	}
	return l.clock()
}

// notify runs observers in registration order, then the high-risk handler.
// A panicking observer is logged and skipped.
func (l *Log) notify(ctx context.Context, e SecurityEvent) {
	l.obsMu.RLock()
	subs := make([]subscription, len(l.observers))
	copy(subs, l.observers)
	l.obsMu.RUnlock()

	for _, sub := range subs {
		l.safeObserve(ctx, sub.observer, e, "observer")
	}
	if l.highRisk != nil && e.RiskLevel.Elevated() {
		l.safeObserve(ctx, l.highRisk, e, "high-risk handler")
	}
}

func (l *Log) safeObserve(ctx context.Context, o Observer, e SecurityEvent, kind string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "security event "+kind+" panicked",
				"event_id", e.ID,
				"panic", r,
			)
		}
	}()
	o.Observe(ctx, e.Clone())
}

func (l *Log) logRecorded(ctx context.Context, e SecurityEvent) {
	args := []any{
		"log_type", "audit",
		"event_id", e.ID,
		"type", e.Type,
		"result", e.Result,
		"risk", e.RiskLevel,
		"actor_id", e.ActorID,
		"details", e.Details,
	}
	args = attrs.AppendNonEmpty(args, "actor_role", e.ActorRole)
	args = attrs.AppendNonEmpty(args, "action", e.Action)
	args = attrs.AppendNonEmpty(args, "resource", e.Resource)
	args = attrs.AppendNonEmpty(args, "request_id", requestcontext.RequestID(ctx))

	level := slog.LevelInfo
	if e.RiskLevel.Elevated() {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "security event recorded", args...)
}

// restoreTieOrder reverses runs of equal timestamps in a newest-first slice
// so that events sharing a timestamp appear in recording order.
func restoreTieOrder(events []SecurityEvent) {
	for i := 0; i < len(events); {
		j := i + 1
		for j < len(events) && events[j].Timestamp.Equal(events[i].Timestamp) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			events[a], events[b] = events[b], events[a]
		}
		i = j
	}
}

func cloneAll(events []SecurityEvent) []SecurityEvent {
	out := make([]SecurityEvent, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}
