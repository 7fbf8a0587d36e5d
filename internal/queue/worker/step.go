package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/job"
	"github.com/geocoder89/usermgmt/internal/jobs"
)

// ProcessOne claims and runs at most one job. processed is false when the
// queue had nothing runnable.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.stats.IncClaimed()
	start := w.now()

	done := w.prom.TrackJob()
	runCtx, cancelRun := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.exec.Execute(runCtx, j)
	cancelRun()
	done()

	elapsed := w.now().Sub(start)

	if err != nil {
		w.handleFailure(ctx, j, err, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.record(j, "done", elapsed, nil)
	w.log.Info("job done", "job_id", j.ID, "job_type", j.Type, "duration_ms", elapsed.Milliseconds())

	return true, nil
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, runErr error, elapsed time.Duration) {
	msg := runErr.Error()
	attempt := j.Attempts + 1

	if jobs.IsPermanent(runErr) || j.LastAttempt() {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.Error("mark job failed", "job_id", j.ID, "err", err)
		}
		w.record(j, "failed", elapsed, runErr)
		w.log.Error("job failed permanently",
			"job_id", j.ID, "job_type", j.Type, "attempt", attempt, "err", runErr)
		return
	}

	runAt := w.now().Add(ExponentialBackoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.log.Error("reschedule job", "job_id", j.ID, "err", err)
	}

	w.record(j, "retry", elapsed, runErr)
	w.log.Warn("job failed, retrying",
		"job_id", j.ID, "job_type", j.Type, "attempt", attempt, "run_at", runAt, "err", runErr)
}

func (w *Worker) record(j job.Job, result string, d time.Duration, err error) {
	w.stats.Record(j.Type, result, d, err)
	w.prom.ObserveJob(j.Type, result, d)
}
