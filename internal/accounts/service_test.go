package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/authz"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/geocoder89/usermgmt/internal/repo/memory"
	"github.com/geocoder89/usermgmt/internal/security"
	"github.com/geocoder89/usermgmt/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queued struct {
	t       jobs.JobType
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queued
}

func (q *fakeQueue) Enqueue(_ context.Context, t jobs.JobType, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queued{t: t, payload: payload})
	return nil
}

func (q *fakeQueue) ofType(t jobs.JobType) []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []any
	for _, j := range q.jobs {
		if j.t == t {
			out = append(out, j.payload)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	users  *memory.UsersRepo
	queue  *fakeQueue
	images *storage.LocalStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	users := memory.NewUsersRepo()
	q := &fakeQueue{}

	svc := NewService(Deps{
		Users:   users,
		Refresh: memory.NewRefreshTokensRepo(),
		Tokens:  auth.NewManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour),
		Hasher:  security.NewHasher(4),
		Images:  images,
		Jobs:    q,
		ListTTL: time.Minute,
	})

	return fixture{svc: svc, users: users, queue: q, images: images}
}

func registerInput(email, phone string) RegisterInput {
	return RegisterInput{
		Name:     "Ada Lovelace",
		Email:    email,
		Phone:    phone,
		Password: "secret1",
		State:    "Lagos",
		City:     "Ikeja",
		Country:  "Nigeria",
		Pincode:  "100001",
	}
}

var pngImage = storage.Image{Data: []byte("png-bytes"), ContentType: "image/png", Ext: ".png"}

func TestRegister_HashesPasswordAndForcesUserRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	assert.Equal(t, user.RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NoError(t, security.NewHasher(4).Compare(u.PasswordHash, "secret1"))

	events := f.queue.ofType(jobs.JobNotifyUserEvent)
	require.Len(t, events, 1)
	assert.Equal(t, jobs.EventUserRegistered, events[0].(jobs.NotifyUserEventPayload).Event)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)

	in := registerInput("ada@example.com", "0123456789")
	in.Password = "abc"

	_, err := f.svc.Register(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestRegister_DuplicateDropsSavedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	in := registerInput("ada@example.com", "0999999999")
	in.Image = &pngImage

	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, user.ErrDuplicate)

	drops := f.queue.ofType(jobs.JobDeleteProfileImage)
	require.Len(t, drops, 1)
	assert.Contains(t, drops[0].(jobs.DeleteProfileImagePayload).Ref, "/uploads/user-")
}

func TestLogin_ByEmailOrPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	for _, id := range []string{"ada@example.com", "0123456789"} {
		u, pair, err := f.svc.Login(ctx, id, "secret1")
		require.NoError(t, err, id)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	_, _, wrongPass := f.svc.Login(ctx, "ada@example.com", "nope123")
	_, _, unknown := f.svc.Login(ctx, "nobody@example.com", "secret1")

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	_, first, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// presenting the rotated token again revokes the whole family
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestAuthFlow_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prom := observability.NewProm(prometheus.NewRegistry())
	f.svc.metrics = prom

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "wrong12")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, first, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.UserEvents.WithLabelValues(jobs.EventUserRegistered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.AuthFailures.WithLabelValues("bad_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.TokenEvents.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.TokenEvents.WithLabelValues("rotated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.TokenEvents.WithLabelValues("reuse_detected")))
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	_, pair, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestLogout_RevokesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	_, pair, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, "garbage"))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestList_AdminOnlyAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	_, err = f.svc.List(ctx, a.Identity(), user.ListFilter{})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	admin := user.Identity{ID: 999, Role: user.RoleAdmin}
	out, err := f.svc.List(ctx, admin, user.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// a write through the service invalidates the cached page
	_, err = f.svc.Register(ctx, registerInput("bola@example.com", "0222222222"))
	require.NoError(t, err)

	out, err = f.svc.List(ctx, admin, user.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestList_SearchKeysMatchQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := user.Identity{ID: 999, Role: user.RoleAdmin}

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	out, err := f.svc.List(ctx, admin, user.NewListFilter("ada", "", ""))
	require.NoError(t, err)
	require.Len(t, out, 1)

	// padded input is trimmed before it reaches the store or the cache
	out, err = f.svc.List(ctx, admin, user.NewListFilter("  ada ", "", ""))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// a raw filter with leading space is its own query and its own entry
	raw := " ada"
	out, err = f.svc.List(ctx, admin, user.ListFilter{Search: &raw})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGet_SelfOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	b, err := f.svc.Register(ctx, registerInput("bola@example.com", "0222222222"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, a.Identity(), a.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, a.Identity(), b.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	// forbidden wins over not found for non-admins
	_, err = f.svc.Get(ctx, a.Identity(), 12345)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.svc.Get(ctx, user.Identity{ID: 999, Role: user.RoleAdmin}, 12345)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUpdate_NonAdminCannotChangeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	admin := user.RoleAdmin
	city := "Yaba"
	u, err := f.svc.Update(ctx, a.Identity(), a.ID, UpdateInput{City: &city, Role: &admin})
	require.NoError(t, err)

	assert.Equal(t, user.RoleUser, u.Role)
	assert.Equal(t, "Yaba", u.City)
}

func TestUpdate_AdminRoleChangeAndInvalidRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := user.Identity{ID: 999, Role: user.RoleAdmin}

	a, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)

	bogus := user.Role("root")
	_, err = f.svc.Update(ctx, actor, a.ID, UpdateInput{Role: &bogus})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	promote := user.RoleAdmin
	u, err := f.svc.Update(ctx, actor, a.ID, UpdateInput{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
}

func TestUpdate_PasswordChangeRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	_, pair, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	pw := "newsecret9"
	_, err = f.svc.Update(ctx, a.Identity(), a.ID, UpdateInput{Password: &pw})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, _, err = f.svc.Login(ctx, "ada@example.com", "newsecret9")
	assert.NoError(t, err)
}

func TestUpdate_ReplacingImageSchedulesOldDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := registerInput("ada@example.com", "0123456789")
	in.Image = &pngImage
	a, err := f.svc.Register(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, a.ProfileImage)

	// object names are derived from the clock
	f.svc.now = func() time.Time { return time.Now().UTC().Add(time.Second) }

	u, err := f.svc.Update(ctx, a.Identity(), a.ID, UpdateInput{Image: &pngImage})
	require.NoError(t, err)
	require.NotNil(t, u.ProfileImage)
	assert.NotEqual(t, *a.ProfileImage, *u.ProfileImage)

	drops := f.queue.ofType(jobs.JobDeleteProfileImage)
	require.Len(t, drops, 1)
	assert.Equal(t, *a.ProfileImage, drops[0].(jobs.DeleteProfileImagePayload).Ref)
}

func TestUpdate_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("ada@example.com", "0123456789"))
	require.NoError(t, err)
	b, err := f.svc.Register(ctx, registerInput("bola@example.com", "0222222222"))
	require.NoError(t, err)

	taken := "ada@example.com"
	_, err = f.svc.Update(ctx, b.Identity(), b.ID, UpdateInput{Email: &taken})
	assert.ErrorIs(t, err, user.ErrDuplicate)
}

func TestDelete_RemovesUserAndSchedulesCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := registerInput("ada@example.com", "0123456789")
	in.Image = &pngImage
	a, err := f.svc.Register(ctx, in)
	require.NoError(t, err)
	_, pair, err := f.svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	b, err := f.svc.Register(ctx, registerInput("bola@example.com", "0222222222"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, b.Identity(), a.ID), authz.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, a.Identity(), a.ID))

	_, err = f.users.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	drops := f.queue.ofType(jobs.JobDeleteProfileImage)
	require.Len(t, drops, 1)
	assert.Equal(t, *a.ProfileImage, drops[0].(jobs.DeleteProfileImagePayload).Ref)

	assert.ErrorIs(t, f.svc.Delete(ctx, user.Identity{ID: 1, Role: user.RoleAdmin}, a.ID), user.ErrNotFound)
}
