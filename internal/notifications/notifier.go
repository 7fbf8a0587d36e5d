package notifications

import (
	"context"
	"time"
)

// UserEvent describes a change to a user account. Type doubles as the AMQP
// routing key.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	ActorID    int64     `json:"actorId,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Notifier interface {
	NotifyUserEvent(ctx context.Context, ev UserEvent) error
}
