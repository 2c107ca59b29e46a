package errorhandling

import (
	"fmt"
	"time"
)

// Kind is the exhaustive taxonomy of classified errors. Anything no rule
// recognizes is KindUnknown.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindDatabase       Kind = "database"
	KindFileUpload     Kind = "file_upload"
	KindPermission     Kind = "permission"
	KindBusinessLogic  Kind = "business_logic"
	KindTimeout        Kind = "timeout"
	KindUnknown        Kind = "unknown"
)

// Severity drives presentation. Severities are totally ordered:
// low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the position of s in the severity order. Unknown values rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Context is the partial actor/action tuple a collaborator supplies with a
// fault. Timestamp is assigned at classification time.
type Context struct {
	ActorID   string    `json:"actorId,omitempty"`
	ActorRole string    `json:"actorRole,omitempty"`
	Action    string    `json:"action,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AppError is the classified, immutable form of a fault. It is passed and
// stored by value; nothing holds a reference into the error log.
type AppError struct {
	Kind            Kind     `json:"kind"`
	Severity        Severity `json:"severity"`
	Code            string   `json:"code,omitempty"`
	InternalMessage string   `json:"-"`
	UserMessage     string   `json:"userMessage"`
	Context         Context  `json:"context"`
	Retryable       bool     `json:"retryable"`
	Silent          bool     `json:"silent"`
}

// Error implements the error interface with the technical description.
func (e AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s/%s [%s]: %s", e.Kind, e.Severity, e.Code, e.InternalMessage)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Severity, e.InternalMessage)
}

// ErrorStats aggregates the error log over a time window.
type ErrorStats struct {
	Total      int              `json:"total"`
	ByKind     map[Kind]int     `json:"byKind"`
	BySeverity map[Severity]int `json:"bySeverity"`
	Critical   int              `json:"critical"`
	Retryable  int              `json:"retryable"`
}

func newErrorStats() ErrorStats {
	return ErrorStats{
		ByKind:     map[Kind]int{},
		BySeverity: map[Severity]int{},
	}
}

func (s *ErrorStats) add(e AppError) {
	s.Total++
	s.ByKind[e.Kind]++
	s.BySeverity[e.Severity]++
	if e.Severity == SeverityCritical {
		s.Critical++
	}
	if e.Retryable {
		s.Retryable++
	}
}
