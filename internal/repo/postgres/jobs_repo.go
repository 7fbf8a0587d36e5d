package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/job"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, created_at, updated_at`

// JobsRepo is the Postgres-backed queue for profile image cleanup and
// user event notifications. Workers claim rows with SKIP LOCKED so several
// can poll the same table.
type JobsRepo struct {
	db DB
	observer
}

func NewJobsRepo(db DB, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{db: db, observer: observer{prom: prom}}
}

func scanJob(row pgx.Row) (job.Job, error) {
	var (
		j      job.Job
		status string
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts, &j.RunAt,
		&j.LockedAt, &j.LockedBy, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt,
	)
	j.Status = job.Status(status)
	return j, err
}

func jobNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return job.ErrJobNotFound
	}
	return err
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create", func() error {
		_, err := r.db.Exec(ctx, `INSERT INTO jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, NULL, $8, $8)`,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt, j.CreatedAt,
		)
		return err
	})
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

// ClaimNext locks the oldest due job for workerID. An empty queue yields
// job.ErrJobNotFound.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.claim_next", func() error {
		var err error
		j, err = scanJob(r.db.QueryRow(ctx, `
			UPDATE jobs SET status = 'processing', locked_at = NOW(), locked_by = $1, updated_at = NOW()
			WHERE id = (
				SELECT id FROM jobs
				WHERE status = 'pending' AND run_at <= NOW() AND attempts < max_attempts
				ORDER BY run_at, created_at
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING `+jobColumns, workerID))
		return err
	})
	if err != nil {
		return job.Job{}, jobNotFound(err)
	}
	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.transition(ctx, "jobs.mark_done", `
		UPDATE jobs SET status = 'done', locked_at = NULL, locked_by = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id)
}

// MarkFailed records the final attempt and parks the job as failed.
func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.transition(ctx, "jobs.mark_failed", `
		UPDATE jobs SET status = 'failed', attempts = attempts + 1, locked_at = NULL, locked_by = NULL,
			last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
}

// Reschedule records a failed attempt and makes the job due again at runAt.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.transition(ctx, "jobs.reschedule", `
		UPDATE jobs SET status = 'pending', attempts = attempts + 1, run_at = $2, locked_at = NULL, locked_by = NULL,
			last_error = $3, updated_at = NOW()
		WHERE id = $1`, id, runAt, errMsg)
}

func (r *JobsRepo) transition(ctx context.Context, op, sql string, args ...any) error {
	return r.observe(op, func() error {
		tag, err := r.db.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return job.ErrJobNotFound
		}
		return nil
	})
}

// RequeueStaleProcessing hands jobs back to the queue when the worker that
// claimed them has held the lock for longer than lockTTL.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := lockTTL.Seconds()
	if secs <= 0 {
		secs = 30
	}

	var n int64
	err := r.observe("jobs.requeue_stale", func() error {
		tag, err := r.db.Exec(ctx, `
			UPDATE jobs SET status = 'pending', locked_at = NULL, locked_by = NULL, updated_at = NOW()
			WHERE status = 'processing' AND locked_at < NOW() - make_interval(secs => $1)`, secs)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job
	err := r.observe("jobs.get_by_id", func() error {
		var err error
		j, err = scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return job.Job{}, jobNotFound(err)
	}
	return j, nil
}
