package user

import (
	"context"
	"errors"
	"fmt"

	"microblog/internal/auth"
	"microblog/internal/common"
	"microblog/internal/observability"

	"github.com/sirupsen/logrus"
)

type UserServiceInterface interface {
	Register(ctx context.Context, username, password string) (*User, error)
	Verify(ctx context.Context, username, password string) (*User, error)
	Exists(ctx context.Context, username string) (bool, error)
}

type UserService struct {
	repo    UserRepositoryInterface
	hasher  *auth.PasswordHasher
	metrics *observability.Metrics
}

func NewUserService(repo UserRepositoryInterface, hasher *auth.PasswordHasher, metrics *observability.Metrics) UserServiceInterface {
	return &UserService{
		repo:    repo,
		hasher:  hasher,
		metrics: metrics,
	}
}

// Register creates a user with a bcrypt hash of password. A taken username
// fails with common.ErrConflict regardless of the password.
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		s.metrics.AuthAttempt("signup", "invalid")
		return nil, common.ErrMissingFields
	}

	// Skip the bcrypt work for names that are obviously taken.
	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil && existing != nil {
		s.metrics.AuthAttempt("signup", "conflict")
		return nil, common.ErrConflict
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, s.storeError("get_user", err)
	}

	hashedPassword, err := s.hasher.GeneratePasswordHash(password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			s.metrics.AuthAttempt("signup", "invalid")
			return nil, err
		}
		logrus.WithError(err).Error("Failed to hash password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &User{
		Username:     username,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.metrics.AuthAttempt("signup", "conflict")
			return nil, err
		}
		return nil, s.storeError("create_user", err)
	}

	s.metrics.AuthAttempt("signup", "success")
	return user, nil
}

// Verify checks username and password. Unknown users and wrong passwords
// both fail with common.ErrInvalidCredentials and cost the same bcrypt work.
func (s *UserService) Verify(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		s.metrics.AuthAttempt("login", "invalid")
		return nil, common.ErrMissingFields
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.CompareDummy(password)
			s.metrics.AuthAttempt("login", "failure")
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.storeError("get_user", err)
	}

	if err := s.hasher.ComparePasswordHash([]byte(user.PasswordHash), password); err != nil {
		s.metrics.AuthAttempt("login", "failure")
		return nil, common.ErrInvalidCredentials
	}

	s.metrics.AuthAttempt("login", "success")
	return user, nil
}

// Exists reports whether username is still registered.
func (s *UserService) Exists(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}

	_, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, s.storeError("get_user", err)
	}
	return true, nil
}

func (s *UserService) storeError(operation string, err error) error {
	s.metrics.StoreError(operation)
	logrus.WithError(err).WithField("operation", operation).Error("User store failure")
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
