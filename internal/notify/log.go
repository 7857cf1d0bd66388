package notify

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log sink; a nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n Notification) error {
	attrs := []slog.Attr{
		slog.Int64("notification_id", n.ID),
		slog.String("correlation_id", n.CorrelationID),
		logfields.ZoneID(n.ZoneID),
		logfields.Transition(n.Kind.String()),
		slog.String("text", n.Text),
	}
	if n.Message != "" {
		attrs = append(attrs, slog.String("message", n.Message))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, n.Title, attrs...)
	return nil
}
