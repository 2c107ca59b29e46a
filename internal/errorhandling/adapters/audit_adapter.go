// Package adapters connects the error handler to the security audit log
// without either package importing the other.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"courtside/internal/errorhandling"
	"courtside/internal/securityaudit"
	"courtside/pkg/requestcontext"
)

// SuspiciousAlertAction marks errors raised for suspicious activity flags.
// They are never reported back to the audit log.
const SuspiciousAlertAction = "suspicious activity alert"

// AuditReporter records permission and authorization errors in the audit
// log and re-evaluates the actor's suspicious activity status.
type AuditReporter struct {
	log *securityaudit.Log
}

// NewAuditReporter creates an errorhandling.SecurityReporter backed by log.
func NewAuditReporter(log *securityaudit.Log) (*AuditReporter, error) {
	if log == nil {
		return nil, errors.New("audit log is required")
	}
	return &AuditReporter{log: log}, nil
}

// ReportDenial implements errorhandling.SecurityReporter.
func (r *AuditReporter) ReportDenial(ctx context.Context, e errorhandling.AppError) {
	if e.Context.Action == SuspiciousAlertAction || e.Context.ActorID == "" {
		return
	}

	eventType := securityaudit.EventPermissionDenied
	if e.Kind == errorhandling.KindAuthorization {
		eventType = securityaudit.EventUnauthorizedAccess
	}
	risk := securityaudit.RiskHigh
	if e.Severity == errorhandling.SeverityCritical {
		risk = securityaudit.RiskCritical
	}

	extra := map[string]string{"kind": string(e.Kind)}
	if e.Code != "" {
		extra["code"] = e.Code
	}
	r.log.Record(ctx, securityaudit.EventInput{
		Type:      eventType,
		ActorID:   e.Context.ActorID,
		ActorRole: e.Context.ActorRole,
		Action:    e.Context.Action,
		Resource:  e.Context.Resource,
		Result:    securityaudit.ResultDenied,
		RiskLevel: risk,
		Details: securityaudit.Details{
			TargetResource: e.Context.Resource,
			Reason:         e.InternalMessage,
			Extra:          extra,
		},
	})
	r.log.DetectSuspicious(ctx, e.Context.ActorID)
}

// Handler is the part of errorhandling.Handler the notifier needs.
type Handler interface {
	Handle(ctx context.Context, err error, actx errorhandling.Context) errorhandling.AppError
}

// SuspiciousNotifier is an audit log observer that surfaces suspicious
// activity flags through the error handler. The raised error carries the
// flagged actor but no role, so it never produces another audit report.
type SuspiciousNotifier struct {
	handler Handler
}

func NewSuspiciousNotifier(handler Handler) (*SuspiciousNotifier, error) {
	if handler == nil {
		return nil, errors.New("error handler is required")
	}
	return &SuspiciousNotifier{handler: handler}, nil
}

// Observe implements securityaudit.Observer.
func (n *SuspiciousNotifier) Observe(ctx context.Context, e securityaudit.SecurityEvent) {
	if e.Type != securityaudit.EventSuspiciousActivity {
		return
	}
	ctx = requestcontext.WithActor(ctx, "", "")
	n.handler.Handle(ctx,
		fmt.Errorf("suspicious activity flagged after repeated permission denials: %s", e.Details.Reason),
		errorhandling.Context{
			ActorID:  e.ActorID,
			Action:   SuspiciousAlertAction,
			Resource: e.Resource,
		},
	)
}
