// Package notify delivers chat notices outside the widget itself.
package notify

import (
	"context"
	"log/slog"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

// Sink receives user-visible notices. Implementations must not block for long;
// they are called from the request path.
type Sink interface {
	Notify(ctx context.Context, n domain.Notice)
}

// LogSink writes notices to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify logs n at a level matching its kind.
func (s *LogSink) Notify(ctx context.Context, n domain.Notice) {
	level := slog.LevelWarn
	if n.Kind == domain.NoticeTransportFailure {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "Chat notice",
		"kind", n.Kind,
		"message", n.Message,
		"session_key", n.SessionKey,
	)
}

// Multi fans a notice out to every sink in order. Nil sinks are skipped.
type Multi []Sink

// Notify calls each sink.
func (m Multi) Notify(ctx context.Context, n domain.Notice) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
