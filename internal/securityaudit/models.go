package securityaudit

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// EventType classifies security events.
type EventType string

const (
	EventPermissionDenied           EventType = "permission_denied"
	EventUnauthorizedAccess         EventType = "unauthorized_access"
	EventDataAccessViolation        EventType = "data_access_violation"
	EventPrivilegeEscalationAttempt EventType = "privilege_escalation_attempt"
	EventSuspiciousActivity         EventType = "suspicious_activity"
	EventLoginAttempt               EventType = "login_attempt"
	EventPasswordChange             EventType = "password_change"
	EventRoleChange                 EventType = "role_change"
	EventPermissionChange           EventType = "permission_change"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventPermissionDenied, EventUnauthorizedAccess, EventDataAccessViolation,
		EventPrivilegeEscalationAttempt, EventSuspiciousActivity, EventLoginAttempt,
		EventPasswordChange, EventRoleChange, EventPermissionChange:
		return true
	}
	return false
}

// Result is the outcome of the attempted action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultError   Result = "error"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	return r == ResultSuccess || r == ResultDenied || r == ResultError
}

// RiskLevel is the assessed risk of an event.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Elevated reports whether r triggers the high-risk handler.
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Details is the free-form context of an event. Browser and OS are derived
// from UserAgent when it is set.
type Details struct {
	IP                  string            `json:"ip,omitempty"`
	UserAgent           string            `json:"userAgent,omitempty"`
	Browser             string            `json:"browser,omitempty"`
	OS                  string            `json:"os,omitempty"`
	RequestedPermission string            `json:"requestedPermission,omitempty"`
	TargetResource      string            `json:"targetResource,omitempty"`
	Reason              string            `json:"reason,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

func (d Details) clone() Details {
	d.Extra = maps.Clone(d.Extra)
	return d
}

// EventInput is what a recorder supplies. ID, timestamp and hashes are
// assigned by the log; an empty RiskLevel is filled from the default table.
type EventInput struct {
	Type      EventType `json:"type"`
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Result    Result    `json:"result"`
	RiskLevel RiskLevel `json:"riskLevel,omitempty"`
	Details   Details   `json:"details"`
}

// Validate checks that the input names a known type and result, and a known
// risk level when one is given.
func (in EventInput) Validate() error {
	var errs []error
	if !in.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown event type %q", in.Type))
	}
	if !in.Result.Valid() {
		errs = append(errs, fmt.Errorf("unknown result %q", in.Result))
	}
	if in.RiskLevel != "" && !in.RiskLevel.Valid() {
		errs = append(errs, fmt.Errorf("unknown risk level %q", in.RiskLevel))
	}
	if in.ActorID == "" {
		errs = append(errs, errors.New("actor id is required"))
	}
	return errors.Join(errs...)
}

// SecurityEvent is an immutable record in the audit log. Hash covers every
// other field and PrevHash, chaining each event to the one recorded before it.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Result    Result    `json:"result"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Details   Details   `json:"details"`
	PrevHash  string    `json:"prevHash"`
	Hash      string    `json:"hash"`
}

// Clone returns a copy that shares no maps with e.
func (e SecurityEvent) Clone() SecurityEvent {
	e.Details = e.Details.clone()
	return e
}

// Stats aggregates the audit log.
type Stats struct {
	Total                   int               `json:"total"`
	ByType                  map[EventType]int `json:"byType"`
	ByRisk                  map[RiskLevel]int `json:"byRisk"`
	ByActor                 map[string]int    `json:"byActor"`
	DeniedAttempts          int               `json:"deniedAttempts"`
	SuspiciousActivityCount int               `json:"suspiciousActivityCount"`
}

func newStats() Stats {
	return Stats{
		ByType:  map[EventType]int{},
		ByRisk:  map[RiskLevel]int{},
		ByActor: map[string]int{},
	}
}

func (s *Stats) add(e SecurityEvent) {
	s.Total++
	s.ByType[e.Type]++
	s.ByRisk[e.RiskLevel]++
	s.ByActor[e.ActorID]++
	if e.Result == ResultDenied {
		s.DeniedAttempts++
	}
	if e.Type == EventSuspiciousActivity {
		s.SuspiciousActivityCount++
	}
}

// TimeRange bounds a query. Both ends are inclusive; a zero end is open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	ActorID string
	Type    EventType
	Result  Result
	Risk    RiskLevel
	Range   TimeRange
	Limit   int // newest events are kept when the result exceeds Limit
}

func (f Filter) match(e SecurityEvent) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.Risk != "" && e.RiskLevel != f.Risk {
		return false
	}
	return true
}

// defaultRisk assigns a risk level when the recorder leaves it empty.
// Unknown combinations default to RiskMedium.
var defaultRisk = map[EventType]map[Result]RiskLevel{
	EventPermissionDenied: {
		ResultDenied: RiskMedium,
		ResultError:  RiskMedium,
	},
	EventUnauthorizedAccess: {
		ResultDenied:  RiskHigh,
		ResultError:   RiskHigh,
		ResultSuccess: RiskCritical,
	},
	EventDataAccessViolation: {
		ResultDenied:  RiskHigh,
		ResultError:   RiskHigh,
		ResultSuccess: RiskCritical,
	},
	EventPrivilegeEscalationAttempt: {
		ResultDenied:  RiskCritical,
		ResultError:   RiskCritical,
		ResultSuccess: RiskCritical,
	},
	EventSuspiciousActivity: {
		ResultSuccess: RiskHigh,
	},
	EventLoginAttempt: {
		ResultSuccess: RiskLow,
		ResultDenied:  RiskMedium,
		ResultError:   RiskLow,
	},
	EventPasswordChange: {
		ResultSuccess: RiskMedium,
		ResultDenied:  RiskMedium,
	},
	EventRoleChange: {
		ResultSuccess: RiskHigh,
		ResultDenied:  RiskHigh,
	},
	EventPermissionChange: {
		ResultSuccess: RiskHigh,
		ResultDenied:  RiskHigh,
	},
}

// DefaultRisk returns the risk level assigned to an event of type t with
// result r when none is given.
func DefaultRisk(t EventType, r Result) RiskLevel {
	if risk, ok := defaultRisk[t][r]; ok {
		return risk
	}
	return RiskMedium
}
