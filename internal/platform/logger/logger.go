package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"courtside/internal/platform/config"
)

// redactedKeys never leave the process in production mode. They carry
// technical detail or personal data that only developers should see.
var redactedKeys = map[string]struct{}{
	"internal_message": {},
	"actor_id":         {},
	"ip":               {},
	"user_agent":       {},
	"details":          {},
	"cause":            {},
	"error":            {},
}

const redacted = "[redacted]"

// New builds the process logger for the configured mode. Development gets a
// colored, debug-level console handler with full detail; production gets JSON
// at info level with sensitive attributes redacted.
func New(cfg config.Server) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg.Mode)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, mode config.Mode) *slog.Logger {
	if mode == config.ModeProduction {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			ReplaceAttr: redact,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	}))
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[a.Key]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
