package jobs

import "time"

// DeleteProfileImagePayload names a storage object to remove.
type DeleteProfileImagePayload struct {
	Ref    string `json:"ref"`
	UserID int64  `json:"userId,omitempty"`
}

// user lifecycle event names, also used as AMQP routing keys
const (
	EventUserRegistered = "user.registered"
	EventUserUpdated    = "user.updated"
	EventUserDeleted    = "user.deleted"
)

// NotifyUserEventPayload carries enough to notify without a DB read, since
// the user may already be deleted when the job runs.
type NotifyUserEventPayload struct {
	Event      string    `json:"event"`
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	ActorID    int64     `json:"actorId,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
