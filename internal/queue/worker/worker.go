package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/job"
	"github.com/geocoder89/usermgmt/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Executor interface {
	Execute(ctx context.Context, j job.Job) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	LockTTL       time.Duration
	JobTimeout    time.Duration
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg   Config
	repo  JobsRepository
	exec  Executor
	log   *slog.Logger
	prom  *observability.Prom
	stats *observability.JobStats
	now   func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

type Option func(*Worker)

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.log = l }
}

func WithMetrics(p *observability.Prom, s *observability.JobStats) Option {
	return func(w *Worker) {
		w.prom = p
		if s != nil {
			w.stats = s
		}
	}
}

func New(cfg Config, repo JobsRepository, exec Executor, opts ...Option) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	w := &Worker{
		cfg:   cfg,
		repo:  repo,
		exec:  exec,
		log:   slog.Default(),
		stats: observability.NewJobStats(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) Stats() observability.JobStatsSnapshot {
	return w.stats.Snapshot()
}

// Run polls until ctx is cancelled. Each of the Concurrency loops claims
// jobs independently; SKIP LOCKED keeps them from colliding. In-flight jobs
// get ShutdownGrace to finish after cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	// jobs run on a context that outlives ctx by the grace period
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	go func() {
		<-ctx.Done()
		w.setReady(false)
		t := time.NewTimer(w.cfg.ShutdownGrace)
		defer t.Stop()
		select {
		case <-t.C:
			cancelJobs()
		case <-jobCtx.Done():
		}
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reaperLoop(ctx)
	}()

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.pollLoop(ctx, jobCtx, slot)
		}(i)
	}

	wg.Wait()
	w.log.Info("worker stopped", "worker_id", w.cfg.WorkerID)
	return nil
}

func (w *Worker) pollLoop(ctx, jobCtx context.Context, slot int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// drain while there is work, then go back to waiting
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(jobCtx)
			if err != nil {
				w.log.Error("process job failed", "worker_id", w.cfg.WorkerID, "slot", slot, "err", err)
				break
			}
			if !processed {
				break
			}
		}
	}
}

func (w *Worker) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.Error("requeue stale jobs failed", "err", err)
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}
		}
	}
}
