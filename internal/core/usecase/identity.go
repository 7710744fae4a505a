package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

// identityStore wraps the user repository with the password hashing discipline: a password is only hashed when a
// new plain-text one was set on the user.
type identityStore struct {
	repository ports.UserRepository
	hasher     ports.PasswordHasher
	nowFunc    func() time.Time
}

func (s identityStore) create(ctx context.Context, user *model.User) error {
	if err := s.hashPendingPassword(user); err != nil {
		return err
	}
	now := s.nowFunc()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := s.repository.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("error saving user in repository: %w", err)
	}
	return nil
}

func (s identityStore) save(ctx context.Context, user *model.User) error {
	if err := s.hashPendingPassword(user); err != nil {
		return err
	}
	user.UpdatedAt = s.nowFunc()
	if err := s.repository.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("error updating user in repository: %w", err)
	}
	return nil
}

func (s identityStore) hashPendingPassword(user *model.User) error {
	if user.Password == "" {
		return nil
	}
	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		return fmt.Errorf("error creating password hash: %w", err)
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}
