package jobs

import (
	"context"

	"github.com/geocoder89/usermgmt/internal/domain/job"
)

type Creator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// Enqueuer validates and encodes a payload, then stores it for the worker.
type Enqueuer struct {
	repo Creator
}

func NewEnqueuer(repo Creator) *Enqueuer {
	return &Enqueuer{repo: repo}
}

func (e *Enqueuer) Enqueue(ctx context.Context, t JobType, payload any) error {
	req, err := NewCreateRequest(t, payload)
	if err != nil {
		return err
	}

	_, err = e.repo.Create(ctx, req)
	return err
}
