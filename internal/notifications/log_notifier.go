package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier is used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyUserEvent(ctx context.Context, ev UserEvent) error {
	n.log.InfoContext(ctx, "notification.user_event",
		"type", ev.Type,
		"user_id", ev.UserID,
		"email", ev.Email,
		"actor_id", ev.ActorID,
		"request_id", ev.RequestID,
	)
	return nil
}
