package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/repository"
)

// UserService serves the read-only user endpoints.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// UserDetail is a user plus the IDs of the snippets they own, newest first.
type UserDetail struct {
	User       model.User
	SnippetIDs []string
}

// Get returns one user with their snippet IDs.
func (s *UserService) Get(ctx context.Context, id string) (*UserDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ids, err := s.users.SnippetIDsByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: snippets of %s: %w", user.ID, err)
	}

	return &UserDetail{User: *user, SnippetIDs: ids[user.ID]}, nil
}

// List returns one window of users, oldest first, and the total count.
// Snippet IDs for the whole page come from a single query.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]UserDetail, int, error) {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("service/user: counting users: %w", err)
	}
	if offset >= count {
		return []UserDetail{}, count, nil
	}

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("service/user: listing users: %w", err)
	}

	ownerIDs := make([]string, len(users))
	for i := range users {
		ownerIDs[i] = users[i].ID
	}
	ids, err := s.users.SnippetIDsByOwner(ctx, ownerIDs...)
	if err != nil {
		return nil, 0, fmt.Errorf("service/user: snippet ids: %w", err)
	}

	details := make([]UserDetail, len(users))
	for i := range users {
		details[i] = UserDetail{User: users[i], SnippetIDs: ids[users[i].ID]}
	}
	return details, count, nil
}
