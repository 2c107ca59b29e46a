// Package fault defines the raw failure values collaborators hand to the
// error classifier, and helpers for pulling a machine code out of whatever
// error a database driver or backend client produced.
package fault

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Fault is an opaque failure with an optional machine code, message and
// cause. The zero value is a valid, empty fault.
type Fault struct {
	Code       string
	Message    string
	Cause      error
	Validation bool // raised by input validation rather than by a backend
}

// New creates a fault carrying a backend code and message.
func New(code, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Fault {
	return &Fault{Code: code, Message: message, Cause: err}
}

// Validation creates a fault tagged as a validation failure.
func Validation(message string) *Fault {
	return &Fault{Message: message, Validation: true}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Fault {
	return Validation(fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (f *Fault) Error() string {
	msg := f.Message
	if msg == "" && f.Cause != nil {
		msg = f.Cause.Error()
	}
	if f.Code != "" {
		return fmt.Sprintf("[%s] %s", f.Code, msg)
	}
	return msg
}

// Unwrap supports error unwrapping.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// ErrorCode returns the machine code, if any.
func (f *Fault) ErrorCode() string {
	return f.Code
}

// coder is satisfied by any error type that exposes a machine code.
type coder interface {
	ErrorCode() string
}

// CodeOf returns the first machine code found in err's tree, including
// errors joined with errors.Join or wrapped with several %w verbs.
// PostgreSQL errors from pgx and lib/pq report their SQLSTATE.
func CodeOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code != "" {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code != "" {
		return string(pqErr.Code)
	}
	var code string
	walk(err, func(e error) bool {
		if c, ok := e.(coder); ok {
			code = c.ErrorCode()
		}
		return code != ""
	})
	return code
}

// MessageOf returns the technical message of err, or "" for nil.
// Driver errors report their primary message without the code prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Message != "" {
		return pgErr.Message
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Message != "" {
		return pqErr.Message
	}
	var f *Fault
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return err.Error()
}

// IsValidation reports whether any fault in err's tree is a validation fault.
func IsValidation(err error) bool {
	return walk(err, func(e error) bool {
		f, ok := e.(*Fault)
		return ok && f.Validation
	})
}

// walk visits err's tree depth-first in the order errors.As uses, following
// both Unwrap() error and Unwrap() []error, until visit returns true.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return false
	}
	if visit(err) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if walk(e, visit) {
				return true
			}
		}
	}
	return false
}
