package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/usermgmt/internal/config"
	"github.com/geocoder89/usermgmt/internal/db"
	"github.com/geocoder89/usermgmt/internal/notifications"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/geocoder89/usermgmt/internal/queue/worker"
	"github.com/geocoder89/usermgmt/internal/repo/postgres"
	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "usermgmt-worker"

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env, serviceName)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.StoreDriver == "memory" {
		return errors.New("the worker needs a database; with STORE_DRIVER=memory the api runs jobs itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		Service:     serviceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.WorkerConcurrency+2))
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	images, _, err := storage.Open(ctx, cfg.StorageDriver, cfg.UploadDir, storage.S3Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKeyID:   cfg.S3AccessKeyID,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("image storage: %w", err)
	}

	notifier, closeNotifier, err := notifications.Open(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	defer func() { _ = closeNotifier() }()

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		WorkerID:      workerID,
		Concurrency:   cfg.WorkerConcurrency,
		LockTTL:       time.Minute,
		ShutdownGrace: 10 * time.Second,
	},
		postgres.NewJobsRepo(pool, prom),
		worker.NewHandler(images, notifier),
		worker.WithLogger(log),
		worker.WithMetrics(prom, observability.NewJobStats()),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", w.HealthHandler(pool))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID, "concurrency", cfg.WorkerConcurrency)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
	return nil
}
