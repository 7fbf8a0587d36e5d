package job

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// DefaultMaxAttempts applies when a CreateRequest leaves MaxAttempts unset.
const DefaultMaxAttempts = 8

var ErrJobNotFound = errors.New("job not found")

// Job is one row of the background queue. Payload is the JSON encoding of
// the typed payload registered for Type.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LockedAt    *time.Time      `json:"lockedAt,omitempty"`
	LockedBy    *string         `json:"lockedBy,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// LastAttempt reports whether a failure of the current run uses up the
// job's final attempt.
func (j Job) LastAttempt() bool {
	return j.Attempts+1 >= j.MaxAttempts
}

type CreateRequest struct {
	Type        string
	Payload     json.RawMessage
	RunAt       time.Time
	MaxAttempts int
}

// New builds a pending job from req, due immediately unless RunAt is set.
func New(req CreateRequest) Job {
	now := time.Now().UTC()

	j := Job{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Payload:     req.Payload,
		Status:      StatusPending,
		MaxAttempts: req.MaxAttempts,
		RunAt:       req.RunAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	if j.RunAt.IsZero() {
		j.RunAt = now
	}

	return j
}
