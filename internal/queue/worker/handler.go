package worker

import (
	"context"
	"fmt"

	"github.com/geocoder89/usermgmt/internal/domain/job"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/notifications"
)

type ImageDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// Handler runs a single job. It knows nothing about claiming or retries.
type Handler struct {
	images   ImageDeleter
	notifier notifications.Notifier
}

func NewHandler(images ImageDeleter, notifier notifications.Notifier) *Handler {
	return &Handler{images: images, notifier: notifier}
}

func (h *Handler) Execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.DeleteProfileImagePayload:
		if h.images == nil {
			return nil
		}
		return h.images.Delete(ctx, p.Ref)

	case jobs.NotifyUserEventPayload:
		if h.notifier == nil {
			return nil
		}
		return h.notifier.NotifyUserEvent(ctx, notifications.UserEvent{
			Type:       p.Event,
			UserID:     p.UserID,
			Email:      p.Email,
			Name:       p.Name,
			ActorID:    p.ActorID,
			RequestID:  p.RequestID,
			OccurredAt: p.OccurredAt,
		})

	default:
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}
}
