package errorhandling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/pkg/fault"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name      string
		err       error
		kind      Kind
		severity  Severity
		retryable bool
		silent    bool
		message   string
	}{
		{
			name:     "duplicate key from fault",
			err:      fault.New("23505", "duplicate key value violates unique constraint"),
			kind:     KindValidation,
			severity: SeverityMedium,
			message:  "already exists",
		},
		{
			name:     "row level denial from pgx",
			err:      fmt.Errorf("insert report: %w", &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}),
			kind:     KindAuthorization,
			severity: SeverityHigh,
			message:  "permission",
		},
		{
			name:     "check constraint from lib/pq",
			err:      &pq.Error{Code: "23514", Message: "violates check constraint"},
			kind:     KindValidation,
			severity: SeverityMedium,
		},
		{
			name:     "foreign key",
			err:      fault.New("23503", "violates foreign key constraint"),
			kind:     KindValidation,
			severity: SeverityMedium,
		},
		{
			name:     "missing relation behind errors.Join",
			err:      errors.Join(errors.New("rollback failed"), &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}),
			kind:     KindDatabase,
			severity: SeverityCritical,
		},
		{
			name:     "missing relation",
			err:      fault.New("42P01", `relation "vending_sales" does not exist`),
			kind:     KindDatabase,
			severity: SeverityCritical,
			message:  "contact support",
		},
		{
			name:      "unrecognized code",
			err:       fault.New("XX000", "internal error"),
			kind:      KindDatabase,
			severity:  SeverityMedium,
			retryable: true,
		},
		{
			name:      "browser fetch failure",
			err:       errors.New("Failed to fetch"),
			kind:      KindNetwork,
			severity:  SeverityLow,
			retryable: true,
			silent:    true,
		},
		{
			name:      "dial failure",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")},
			kind:      KindNetwork,
			severity:  SeverityLow,
			retryable: true,
			silent:    true,
		},
		{
			name:      "deadline exceeded",
			err:       fmt.Errorf("load schedule: %w", context.DeadlineExceeded),
			kind:      KindTimeout,
			severity:  SeverityMedium,
			retryable: true,
		},
		{
			name:     "permission message",
			err:      errors.New("Permission denied for tasks"),
			kind:     KindPermission,
			severity: SeverityHigh,
			message:  "administrator",
		},
		{
			name:     "forbidden message",
			err:      errors.New("403 Forbidden"),
			kind:     KindPermission,
			severity: SeverityHigh,
		},
		{
			name:     "validation required",
			err:      fault.Validation("name is required"),
			kind:     KindValidation,
			severity: SeverityLow,
			message:  "required fields",
		},
		{
			name:     "validation email",
			err:      fault.Validation("invalid email"),
			kind:     KindValidation,
			severity: SeverityLow,
			message:  "email address",
		},
		{
			name:     "validation phone before number",
			err:      fault.Validation("phone number malformed"),
			kind:     KindValidation,
			severity: SeverityLow,
			message:  "phone number",
		},
		{
			name:     "validation without known phrase",
			err:      fault.Validation("weird"),
			kind:     KindValidation,
			severity: SeverityLow,
			message:  DefaultValidationText,
		},
		{
			name:      "unknown",
			err:       errors.New("boom"),
			kind:      KindUnknown,
			severity:  SeverityLow,
			retryable: true,
			silent:    true,
		},
		{
			name:      "nil error",
			err:       nil,
			kind:      KindUnknown,
			severity:  SeverityLow,
			retryable: true,
			silent:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Classify(NewInput(tt.err))
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.severity, out.Severity)
			assert.Equal(t, tt.retryable, out.Retryable)
			assert.Equal(t, tt.silent, out.Silent)
			assert.NotEmpty(t, out.UserMessage)
			if tt.message != "" {
				assert.Contains(t, out.UserMessage, tt.message)
			}
		})
	}
}

func TestClassify_RecognizedCodesAreNotRetryable(t *testing.T) {
	for code, out := range BackendCodes {
		assert.False(t, out.Retryable, code)
		assert.NotEmpty(t, out.UserMessage, code)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// A coded fault mentioning permissions is decided by its code.
	out := DefaultClassifier().Classify(NewInput(fault.New("23505", "permission to insert duplicate")))
	assert.Equal(t, KindValidation, out.Kind)

	// A validation fault mentioning permissions is a permission failure.
	out = DefaultClassifier().Classify(NewInput(fault.Validation("not authorized to set this field")))
	assert.Equal(t, KindPermission, out.Kind)
}

func TestClassify_PanickingRuleFallsBack(t *testing.T) {
	c := NewClassifier([]Rule{{
		Name:  "explodes",
		Match: func(Input) bool { panic("bad rule") },
		Build: func(Input) Outcome { return Outcome{} },
	}})

	var out Outcome
	require.NotPanics(t, func() { out = c.Classify(NewInput(errors.New("x"))) })
	assert.Equal(t, Fallback, out)
}

func TestClassify_EmptyUserMessageIsFilled(t *testing.T) {
	c := NewClassifier([]Rule{{
		Name:  "blank",
		Match: func(Input) bool { return true },
		Build: func(Input) Outcome { return Outcome{Kind: KindBusinessLogic, Severity: SeverityMedium} },
	}})

	out := c.Classify(NewInput(errors.New("x")))
	assert.Equal(t, KindBusinessLogic, out.Kind)
	assert.Equal(t, Fallback.UserMessage, out.UserMessage)
}

func TestValidationText(t *testing.T) {
	tests := map[string]string{
		"password too weak":        "Password must be",
		"start date in the past":   "valid date",
		"quantity must be numeric": "valid number",
		"title too long":           "too long",
		"code too short":           "too short",
		"file size exceeded":       "too large",
		"unsupported type image":   "isn't supported",
		"":                         DefaultValidationText,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.Contains(t, ValidationText(msg), want)
		})
	}
}

func TestSeverityOrder(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
}
