package accounts

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/cache"
	"github.com/geocoder89/usermgmt/internal/domain/token"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/storage"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetByLogin(ctx context.Context, loginID string) (user.User, error)
	List(ctx context.Context, filter user.ListFilter) ([]user.User, error)
	Update(ctx context.Context, id int64, p user.Patch) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

type RefreshStore interface {
	Create(ctx context.Context, row token.Refresh) error
	Rotate(ctx context.Context, oldID string, check func(token.Refresh) error, next token.Refresh) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// JobQueue schedules side effects that must not fail the request.
type JobQueue interface {
	Enqueue(ctx context.Context, t jobs.JobType, payload any) error
}

// Metrics counts auth and lifecycle outcomes. *observability.Prom
// implements it.
type Metrics interface {
	IncAuthFailure(reason string)
	IncTokenEvent(event string)
	IncUserEvent(event string)
}

type nopMetrics struct{}

func (nopMetrics) IncAuthFailure(string) {}
func (nopMetrics) IncTokenEvent(string)  {}
func (nopMetrics) IncUserEvent(string)   {}

type Deps struct {
	Users   UserStore
	Refresh RefreshStore
	Tokens  *auth.Manager
	Hasher  PasswordHasher
	Images  storage.ImageStore
	Jobs    JobQueue
	ListTTL time.Duration
	Logger  *slog.Logger
	Metrics Metrics
}

type Service struct {
	users   UserStore
	refresh RefreshStore
	tokens  *auth.Manager
	hasher  PasswordHasher
	images  storage.ImageStore
	jobs    JobQueue
	lists   *cache.Cache[[]user.User]
	log     *slog.Logger
	metrics Metrics
	now     func() time.Time

	// compared against when the login id is unknown, so both failure paths
	// pay for one bcrypt comparison
	dummyHash string
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		users:   d.Users,
		refresh: d.Refresh,
		tokens:  d.Tokens,
		hasher:  d.Hasher,
		images:  d.Images,
		jobs:    d.Jobs,
		lists:   cache.New[[]user.User](d.ListTTL),
		log:     log,
		metrics: d.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}

	if h, err := d.Hasher.Hash("timing-equalizer-0"); err == nil {
		s.dummyHash = h
	}

	return s
}

func (s *Service) enqueue(ctx context.Context, t jobs.JobType, payload any) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Enqueue(ctx, t, payload); err != nil {
		s.log.ErrorContext(ctx, "enqueue job failed", "job_type", string(t), "err", err)
	}
}
