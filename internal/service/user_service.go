package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService exposes read access to users.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// GetUser fetches a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	if err != nil {
		return nil, storeFailure(s.logger, "get user", "", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by name.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "list users", "", err)
	}
	return users, nil
}

// Lookup resolves ids to users, skipping blanks, duplicates and unknown ids.
func (s *UserService) Lookup(ctx context.Context, ids ...string) (map[string]domain.User, error) {
	seen := make(map[string]struct{}, len(ids))
	wanted := make([]string, 0, len(ids))
	for _, id := range ids {
		if !validID(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		wanted = append(wanted, id)
	}

	result := make(map[string]domain.User, len(wanted))
	if len(wanted) == 0 {
		return result, nil
	}
	users, err := s.users.ListByIDs(ctx, wanted)
	if err != nil {
		return nil, storeFailure(s.logger, "lookup users", "", err)
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}
