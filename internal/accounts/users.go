package accounts

import (
	"context"
	"fmt"

	"github.com/geocoder89/usermgmt/internal/authz"
	"github.com/geocoder89/usermgmt/internal/cache"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/jobs"
	"github.com/geocoder89/usermgmt/internal/security"
	"github.com/geocoder89/usermgmt/internal/storage"
)

// List is admin only. Results are cached per filter until the next write.
func (s *Service) List(ctx context.Context, actor user.Identity, filter user.ListFilter) ([]user.User, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return nil, err
	}

	key := cache.ListKey(filter)
	if cached, ok := s.lists.Get(key); ok {
		return cached, nil
	}

	out, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.lists.Set(key, out)
	return out, nil
}

// Get authorizes before looking the record up, so a non-admin learns
// nothing about ids other than their own.
func (s *Service) Get(ctx context.Context, actor user.Identity, id int64) (user.User, error) {
	if err := authz.Authorize(actor, authz.ActionRead, id); err != nil {
		return user.User{}, err
	}
	return s.users.GetByID(ctx, id)
}

type UpdateInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
	Address  *string
	State    *string
	City     *string
	Country  *string
	Pincode  *string
	Role     *user.Role
	Image    *storage.Image
}

func (s *Service) Update(ctx context.Context, actor user.Identity, id int64, in UpdateInput) (user.User, error) {
	if err := authz.Authorize(actor, authz.ActionUpdate, id); err != nil {
		return user.User{}, err
	}

	patch := authz.FilterPatch(actor, user.Patch{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
		State:   in.State,
		City:    in.City,
		Country: in.Country,
		Pincode: in.Pincode,
		Role:    in.Role,
	})

	verr := &ValidationError{}
	if in.Password != nil {
		for _, e := range security.ValidatePassword(*in.Password) {
			verr.Add("password", e.Error())
		}
	}
	if patch.Role != nil && !patch.Role.IsValid() {
		verr.Add("role", "role must be user or admin")
	}
	if err := verr.OrNil(); err != nil {
		return user.User{}, err
	}

	existing, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return user.User{}, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	if in.Image != nil {
		ref, err := s.saveImage(ctx, *in.Image)
		if err != nil {
			return user.User{}, err
		}
		patch.ProfileImage = &ref
	}

	updated, err := s.users.Update(ctx, id, patch)
	if err != nil {
		if patch.ProfileImage != nil {
			s.dropImage(ctx, *patch.ProfileImage)
		}
		return user.User{}, err
	}

	if patch.ProfileImage != nil && existing.ProfileImage != nil && *existing.ProfileImage != *patch.ProfileImage {
		s.enqueue(ctx, jobs.JobDeleteProfileImage, jobs.DeleteProfileImagePayload{Ref: *existing.ProfileImage, UserID: id})
	}

	if patch.PasswordHash != nil {
		if err := s.refresh.RevokeAllForUser(ctx, id); err != nil {
			s.log.ErrorContext(ctx, "revoke refresh tokens failed", "user_id", id, "err", err)
		}
	}

	s.lists.Clear()
	s.notify(ctx, jobs.EventUserUpdated, updated)

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor user.Identity, id int64) error {
	if err := authz.Authorize(actor, authz.ActionDelete, id); err != nil {
		return err
	}

	existing, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.refresh.RevokeAllForUser(ctx, id); err != nil {
		s.log.ErrorContext(ctx, "revoke refresh tokens failed", "user_id", id, "err", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	if existing.ProfileImage != nil {
		s.enqueue(ctx, jobs.JobDeleteProfileImage, jobs.DeleteProfileImagePayload{Ref: *existing.ProfileImage, UserID: id})
	}

	s.lists.Clear()
	s.notify(ctx, jobs.EventUserDeleted, existing)

	return nil
}

func (s *Service) saveImage(ctx context.Context, img storage.Image) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("image storage not configured")
	}

	ref, err := s.images.Save(ctx, storage.ObjectName(s.now(), img.Ext), img)
	if err != nil {
		return "", fmt.Errorf("save profile image: %w", err)
	}
	return ref, nil
}

// dropImage removes an image stored for a write that then failed.
func (s *Service) dropImage(ctx context.Context, ref string) {
	s.enqueue(ctx, jobs.JobDeleteProfileImage, jobs.DeleteProfileImagePayload{Ref: ref})
}
