package errorhandling

import (
	"context"
	"log/slog"
)

// ToastLevel is the style of a transient or persistent notification.
type ToastLevel string

const (
	ToastInfo     ToastLevel = "info"
	ToastWarning  ToastLevel = "warning"
	ToastBlocking ToastLevel = "blocking"
)

// Mode is how an error reaches the user, if at all.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeToast Mode = "toast"
	ModeModal Mode = "modal"
)

// Presentation is the dispatch decision for a classified error. Message is
// the user-facing text only.
type Presentation struct {
	Mode    Mode       `json:"mode"`
	Level   ToastLevel `json:"level,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Presenter is the UI capability the dispatcher drives. Implementations
// must not block.
type Presenter interface {
	ShowModal(message string)
	ShowToast(level ToastLevel, message string)
}

// SecurityReporter receives permission and authorization errors that
// warrant an audit record.
type SecurityReporter interface {
	ReportDenial(ctx context.Context, appErr AppError)
}

// Decide maps an error to its presentation by severity. Silent errors are
// never presented.
func Decide(e AppError) Presentation {
	if e.Silent {
		return Presentation{Mode: ModeNone}
	}
	switch e.Severity {
	case SeverityCritical:
		return Presentation{Mode: ModeModal, Message: e.UserMessage}
	case SeverityHigh:
		return Presentation{Mode: ModeToast, Level: ToastBlocking, Message: e.UserMessage}
	case SeverityMedium:
		return Presentation{Mode: ModeToast, Level: ToastWarning, Message: e.UserMessage}
	default:
		return Presentation{Mode: ModeToast, Level: ToastInfo, Message: e.UserMessage}
	}
}

// LogPresenter presents errors as log lines, for processes with no UI.
type LogPresenter struct {
	logger *slog.Logger
}

// NewLogPresenter creates a presenter writing to logger, or slog.Default.
func NewLogPresenter(logger *slog.Logger) *LogPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPresenter{logger: logger}
}

func (p *LogPresenter) ShowModal(message string) {
	p.logger.Error("modal presented", "presentation", ModeModal, "message", message)
}

func (p *LogPresenter) ShowToast(level ToastLevel, message string) {
	p.logger.Info("toast presented", "presentation", ModeToast, "level", level, "message", message)
}
