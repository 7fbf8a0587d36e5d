package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/usermgmt/internal/accounts"
	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/config"
	"github.com/geocoder89/usermgmt/internal/db"
	httpx "github.com/geocoder89/usermgmt/internal/http"
	"github.com/geocoder89/usermgmt/internal/http/handlers"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/notifications"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/geocoder89/usermgmt/internal/queue/worker"
	"github.com/geocoder89/usermgmt/internal/ratelimit"
	"github.com/geocoder89/usermgmt/internal/redisclient"
	"github.com/geocoder89/usermgmt/internal/repo/gormstore"
	"github.com/geocoder89/usermgmt/internal/repo/memory"
	"github.com/geocoder89/usermgmt/internal/repo/postgres"
	"github.com/geocoder89/usermgmt/internal/security"
	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "usermgmt-api"

// stores is the persistence picked by STORE_DRIVER.
type stores struct {
	users   accounts.UserStore
	refresh accounts.RefreshStore
	jobs    accounts.JobQueue
	checks  map[string]handlers.Check
	close   func()
}

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env, serviceName)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must be set")
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
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	images, uploadDir, err := storage.Open(ctx, cfg.StorageDriver, cfg.UploadDir, storage.S3Config{
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

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	st, err := openStores(ctx, cfg, log, prom, images)
	if err != nil {
		return err
	}
	defer st.close()

	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	err = db.EnsureAdminUser(seedCtx, st.users, hasher, cfg)
	cancelSeed()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	limiter := openLimiter(ctx, cfg, log, st.checks)

	svc := accounts.NewService(accounts.Deps{
		Users:   st.users,
		Refresh: st.refresh,
		Tokens:  tokens,
		Hasher:  hasher,
		Images:  images,
		Jobs:    st.jobs,
		ListTTL: 5 * time.Second,
		Logger:  log,
		Metrics: prom,
	})

	router := httpx.NewRouter(httpx.RouterDeps{
		Config:    cfg,
		Logger:    log,
		Prom:      prom,
		Gatherer:  reg,
		Accounts:  svc,
		Tokens:    tokens,
		Users:     st.users,
		Limiter:   limiter,
		UploadDir: uploadDir,
		Checks:    st.checks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom, images storage.ImageStore) (stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart and jobs run inline")

		notifier, closeNotifier, err := notifications.Open(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return stores{}, fmt.Errorf("notifier: %w", err)
		}

		return stores{
			users:   memory.NewUsersRepo(),
			refresh: memory.NewRefreshTokensRepo(),
			jobs:    worker.NewInline(worker.NewHandler(images, notifier), log, prom),
			checks:  map[string]handlers.Check{},
			close:   func() { _ = closeNotifier() },
		}, nil

	case "postgres", "gorm":
		pool, err := db.NewPool(ctx, cfg.DBURL, 10)
		if err != nil {
			return stores{}, fmt.Errorf("db connect failed: %w", err)
		}

		gdb, err := gormstore.FromPool(pool)
		if err != nil {
			pool.Close()
			return stores{}, err
		}

		if cfg.DBAutoMigrate {
			if err := gormstore.Migrate(gdb); err != nil {
				pool.Close()
				return stores{}, fmt.Errorf("migrate: %w", err)
			}
		}

		st := stores{
			jobs:   jobs.NewEnqueuer(postgres.NewJobsRepo(pool, prom)),
			checks: map[string]handlers.Check{"postgres": pool.Ping},
			close:  pool.Close,
		}

		if cfg.StoreDriver == "gorm" {
			st.users = gormstore.NewUsersStore(gdb, prom)
			st.refresh = gormstore.NewRefreshTokensStore(gdb, prom)
		} else {
			st.users = postgres.NewUsersRepo(pool, prom)
			st.refresh = postgres.NewRefreshTokensRepo(pool, prom)
		}

		return st, nil

	default:
		return stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// openLimiter prefers Redis so limits hold across replicas, and falls back
// to a per-process limiter when Redis is not configured or unreachable.
func openLimiter(ctx context.Context, cfg config.Config, log *slog.Logger, checks map[string]handlers.Check) ratelimit.Limiter {
	if cfg.RateLimitAuth <= 0 {
		return nil
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.New(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			return ratelimit.NewRedisLimiter(rdb, "ums:rl:", cfg.RateLimitAuth, cfg.RateLimitWindow)
		}
		log.Warn("redis unavailable, using in-process rate limiter", "err", err)
	}

	return ratelimit.NewMemoryLimiter(cfg.RateLimitAuth, cfg.RateLimitWindow)
}
