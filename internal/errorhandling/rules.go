package errorhandling

import (
	"context"
	"errors"
	"net"
	"strings"

	"courtside/pkg/fault"
)

// Input is what the classification rules see of a fault.
type Input struct {
	Err        error
	Code       string
	Message    string // lower-cased technical message, for pattern matching
	Validation bool
}

// NewInput extracts the rule input from an arbitrary error. A nil error
// yields an empty input, which only the fallback matches.
func NewInput(err error) Input {
	return Input{
		Err:        err,
		Code:       fault.CodeOf(err),
		Message:    strings.ToLower(fault.MessageOf(err)),
		Validation: fault.IsValidation(err),
	}
}

// Outcome is the classification verdict for a fault, before it is stamped
// with context and time.
type Outcome struct {
	Kind        Kind
	Severity    Severity
	UserMessage string
	Retryable   bool
	Silent      bool
}

// Rule is one entry of the ordered classification table. The first rule
// whose Match accepts the input decides the outcome.
type Rule struct {
	Name  string
	Match func(Input) bool
	Build func(Input) Outcome
}

// Fallback applies when no rule matches: quiet, retryable, unknown.
var Fallback = Outcome{
	Kind:        KindUnknown,
	Severity:    SeverityLow,
	UserMessage: "An unexpected error occurred. Please try again.",
	Retryable:   true,
	Silent:      true,
}

// BackendCodes maps PostgreSQL SQLSTATE codes surfaced by the hosted
// database to their outcome. None of them succeed on a plain retry.
var BackendCodes = map[string]Outcome{
	"23505": {
		Kind:        KindValidation,
		Severity:    SeverityMedium,
		UserMessage: "This value already exists. Please use a different value.",
	},
	"42501": {
		Kind:        KindAuthorization,
		Severity:    SeverityHigh,
		UserMessage: "You don't have permission to access this data.",
	},
	"23514": {
		Kind:        KindValidation,
		Severity:    SeverityMedium,
		UserMessage: "One of the values doesn't meet the requirements. Please check your input.",
	},
	"23503": {
		Kind:        KindValidation,
		Severity:    SeverityMedium,
		UserMessage: "This record is linked to other data and can't be changed that way.",
	},
	"42P01": {
		Kind:        KindDatabase,
		Severity:    SeverityCritical,
		UserMessage: "The system is misconfigured. Please contact support.",
	},
}

// unrecognizedCode applies to any coded fault missing from BackendCodes.
var unrecognizedCode = Outcome{
	Kind:        KindDatabase,
	Severity:    SeverityMedium,
	UserMessage: "We couldn't save or load your data. Please try again.",
	Retryable:   true,
}

// NetworkPatterns are substrings of transport failure messages, as reported
// by browsers and Go's net package.
var NetworkPatterns = []string{
	"failed to fetch",
	"fetch failed",
	"networkerror",
	"network error",
	"network request failed",
	"load failed",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
}

// TimeoutPatterns are substrings of deadline failures.
var TimeoutPatterns = []string{
	"timed out",
	"timeout",
	"deadline exceeded",
}

// PermissionPatterns are substrings of permission and authorization failures.
var PermissionPatterns = []string{
	"permission",
	"unauthorized",
	"not authorized",
	"authorization",
	"forbidden",
	"access denied",
}

// Phrase maps message substrings to the user-facing text for a validation
// failure.
type Phrase struct {
	Substrings []string
	Text       string
}

// ValidationPhrases is scanned in order; the first phrase with a substring
// present in the message wins.
var ValidationPhrases = []Phrase{
	{Substrings: []string{"required"}, Text: "Please fill in all required fields."},
	{Substrings: []string{"email"}, Text: "Please enter a valid email address."},
	{Substrings: []string{"password"}, Text: "Password must be at least 8 characters and include a number."},
	{Substrings: []string{"phone"}, Text: "Please enter a valid phone number."},
	{Substrings: []string{"date"}, Text: "Please enter a valid date."},
	{Substrings: []string{"number", "numeric"}, Text: "Please enter a valid number."},
	{Substrings: []string{"too short", "min length", "minlength", "at least"}, Text: "This value is too short."},
	{Substrings: []string{"too long", "max length", "maxlength", "at most"}, Text: "This value is too long."},
	{Substrings: []string{"file size", "too large"}, Text: "The file is too large."},
	{Substrings: []string{"file type", "unsupported type"}, Text: "This file type isn't supported."},
}

// DefaultValidationText applies when no phrase matches.
const DefaultValidationText = "Please check your input and try again."

// ValidationText resolves the user-facing text for a lower-cased message.
func ValidationText(message string) string {
	for _, p := range ValidationPhrases {
		if containsAny(message, p.Substrings) {
			return p.Text
		}
	}
	return DefaultValidationText
}

// DefaultRules returns the classification table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "backend_code",
			Match: func(in Input) bool { return in.Code != "" },
			Build: func(in Input) Outcome {
				if out, ok := BackendCodes[in.Code]; ok {
					return out
				}
				return unrecognizedCode
			},
		},
		{
			Name:  "network",
			Match: isNetworkFailure,
			Build: func(Input) Outcome {
				return Outcome{
					Kind:        KindNetwork,
					Severity:    SeverityLow,
					UserMessage: "Connection problem. Please check your internet connection.",
					Retryable:   true,
					Silent:      true,
				}
			},
		},
		{
			Name:  "timeout",
			Match: isTimeout,
			Build: func(Input) Outcome {
				return Outcome{
					Kind:        KindTimeout,
					Severity:    SeverityMedium,
					UserMessage: "The request took too long. Please try again.",
					Retryable:   true,
				}
			},
		},
		{
			Name:  "permission",
			Match: func(in Input) bool { return containsAny(in.Message, PermissionPatterns) },
			Build: func(Input) Outcome {
				return Outcome{
					Kind:        KindPermission,
					Severity:    SeverityHigh,
					UserMessage: "You don't have permission to perform this action. Please contact your administrator.",
				}
			},
		},
		{
			Name:  "validation",
			Match: func(in Input) bool { return in.Validation },
			Build: func(in Input) Outcome {
				return Outcome{
					Kind:        KindValidation,
					Severity:    SeverityLow,
					UserMessage: ValidationText(in.Message),
				}
			},
		},
	}
}

func isNetworkFailure(in Input) bool {
	if containsAny(in.Message, NetworkPatterns) {
		return true
	}
	var netErr net.Error
	return errors.As(in.Err, &netErr) && !netErr.Timeout()
}

func isTimeout(in Input) bool {
	if errors.Is(in.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(in.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return containsAny(in.Message, TimeoutPatterns)
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
