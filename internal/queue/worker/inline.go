package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/job"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/observability"
)

// Inline runs jobs at enqueue time instead of persisting them. It backs the
// in-memory store, which has no jobs table for a worker to poll. Failures
// are logged and dropped.
type Inline struct {
	exec  Executor
	log   *slog.Logger
	prom  *observability.Prom
	stats *observability.JobStats
}

func NewInline(exec Executor, log *slog.Logger, prom *observability.Prom) *Inline {
	if log == nil {
		log = slog.Default()
	}
	return &Inline{exec: exec, log: log, prom: prom, stats: observability.NewJobStats()}
}

func (in *Inline) Enqueue(ctx context.Context, t jobs.JobType, payload any) error {
	req, err := jobs.NewCreateRequest(t, payload)
	if err != nil {
		return err
	}
	j := job.New(req)

	// detached so a cancelled request does not abort the side effect
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	start := time.Now()
	err = in.exec.Execute(runCtx, j)
	d := time.Since(start)

	result := "done"
	if err != nil {
		result = "failed"
		in.log.ErrorContext(ctx, "inline job failed", "job_type", j.Type, "err", err)
	}

	in.stats.Record(j.Type, result, d, err)
	in.prom.ObserveJob(j.Type, result, d)

	return nil
}

func (in *Inline) Stats() observability.JobStatsSnapshot {
	return in.stats.Snapshot()
}
