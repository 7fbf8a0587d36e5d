package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/usermgmt/internal/actorctx"
	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/domain/token"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/security"
	"github.com/geocoder89/usermgmt/internal/storage"
)

var errRefreshReused = errors.New("refresh token reused")

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Address  *string
	State    string
	City     string
	Country  string
	Pincode  string
	Image    *storage.Image
}

// Register creates a user with role user. A role sent by the client is
// never honoured here.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	verr := &ValidationError{}
	for _, e := range security.ValidatePassword(in.Password) {
		verr.Add("password", e.Error())
	}
	if err := verr.OrNil(); err != nil {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	var imageRef *string
	if in.Image != nil {
		ref, err := s.saveImage(ctx, *in.Image)
		if err != nil {
			return user.User{}, err
		}
		imageRef = &ref
	}

	created, err := s.users.Create(ctx, user.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		ProfileImage: imageRef,
		Address:      in.Address,
		State:        in.State,
		City:         in.City,
		Country:      in.Country,
		Pincode:      in.Pincode,
		Role:         user.RoleUser,
	})
	if err != nil {
		if imageRef != nil {
			s.dropImage(ctx, *imageRef)
		}
		return user.User{}, err
	}

	s.lists.Clear()
	s.notify(ctx, jobs.EventUserRegistered, created)

	return created, nil
}

// Login checks loginID (email or phone) and password and issues a token
// pair. Every failure that depends on the credentials is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, loginID, password string) (user.User, auth.TokenPair, error) {
	u, err := s.users.GetByLogin(ctx, loginID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = s.hasher.Compare(s.dummyHash, password)
			s.metrics.IncAuthFailure("bad_credentials")
			return user.User{}, auth.TokenPair{}, ErrInvalidCredentials
		}
		return user.User{}, auth.TokenPair{}, err
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.metrics.IncAuthFailure("bad_credentials")
		return user.User{}, auth.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(u.Identity())
	if err != nil {
		return user.User{}, auth.TokenPair{}, err
	}

	if err := s.refresh.Create(ctx, s.refreshRow(u.ID, pair)); err != nil {
		return user.User{}, auth.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	s.metrics.IncTokenEvent("issued")
	return u, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same step. Presenting an already rotated token revokes
// every refresh token of that user.
func (s *Service) Refresh(ctx context.Context, raw string) (auth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(raw)
	if err != nil {
		return auth.TokenPair{}, ErrInvalidRefresh
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return auth.TokenPair{}, ErrInvalidRefresh
		}
		return auth.TokenPair{}, err
	}

	// role comes from the record, not the old token
	pair, err := s.tokens.IssuePair(u.Identity())
	if err != nil {
		return auth.TokenPair{}, err
	}

	hash := s.tokens.HashRefreshToken(raw)
	now := s.now()

	err = s.refresh.Rotate(ctx, claims.ID, func(row token.Refresh) error {
		if row.UserID != u.ID || row.TokenHash != hash {
			return ErrInvalidRefresh
		}
		if row.RevokedAt != nil && row.ReplacedBy != nil {
			return errRefreshReused
		}
		if !row.Usable(now) {
			return ErrInvalidRefresh
		}
		return nil
	}, s.refreshRow(u.ID, pair))

	switch {
	case err == nil:
		s.metrics.IncTokenEvent("rotated")
		return pair, nil
	case errors.Is(err, errRefreshReused):
		s.metrics.IncTokenEvent("reuse_detected")
		s.log.WarnContext(ctx, "refresh token reuse detected", "user_id", u.ID, "jti", claims.ID)
		if rerr := s.refresh.RevokeAllForUser(ctx, u.ID); rerr != nil {
			s.log.ErrorContext(ctx, "revoke refresh tokens failed", "user_id", u.ID, "err", rerr)
		}
		return auth.TokenPair{}, ErrInvalidRefresh
	case errors.Is(err, ErrInvalidRefresh), errors.Is(err, token.ErrRefreshNotFound):
		return auth.TokenPair{}, ErrInvalidRefresh
	default:
		return auth.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
}

// Logout revokes the presented refresh token. Unknown or invalid tokens are
// ignored so the call is idempotent.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.tokens.VerifyRefreshToken(raw)
	if err != nil {
		return nil
	}
	if err := s.refresh.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	s.metrics.IncTokenEvent("revoked")
	return nil
}

func (s *Service) refreshRow(userID int64, pair auth.TokenPair) token.Refresh {
	return token.Refresh{
		ID:        pair.RefreshJTI,
		UserID:    userID,
		TokenHash: s.tokens.HashRefreshToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: s.now(),
	}
}

func (s *Service) notify(ctx context.Context, event string, u user.User) {
	s.metrics.IncUserEvent(event)

	var actorID int64
	if a, ok := actorctx.ActorFrom(ctx); ok {
		actorID = a.Identity.ID
	}

	s.enqueue(ctx, jobs.JobNotifyUserEvent, jobs.NotifyUserEventPayload{
		Event:      event,
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		ActorID:    actorID,
		RequestID:  actorctx.RequestIDFrom(ctx),
		OccurredAt: s.now(),
	})
}
