// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never sets cookies or reads requests; that is the handler's job.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/repository"
	"github.com/sakif/snippet-api/internal/serializer"
)

// Messages reported to clients by the auth flows.
const (
	MsgUsernameTaken  = "A user with that username already exists."
	MsgBadCredentials = "Unable to log in with provided credentials."
)

// AuthService handles registration, login and token checks.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password user from a {"username", "password"} payload.
// A taken username is reported as a field error on "username".
func (s *AuthService) Register(ctx context.Context, fields serializer.Fields) (*model.User, error) {
	creds, err := serializer.DecodeCredentials(fields)
	if err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("Ensure this field has no more than %d bytes.", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Username: creds.Username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", MsgUsernameTaken)
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", creds.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks a username/password payload and issues a token.
//
// Unknown user, wrong password and GitHub-only accounts (no password hash)
// all produce the same non-field error, and take the same bcrypt time.
func (s *AuthService) Login(ctx context.Context, fields serializer.Fields) (*AuthResult, error) {
	creds, err := serializer.DecodeCredentials(fields)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, creds.Username)
	var hash string
	switch {
	case err == nil:
		hash = user.PasswordHash
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %q: %w", creds.Username, err)
	}

	if err := s.passwords.Verify(hash, creds.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("failed login", slog.String("username", creds.Username))
			return nil, apperror.ValidationFailed("", MsgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	return s.issue(user)
}

// LoginGitHub handles the GitHub OAuth callback after the code exchange.
//
// WHY UPSERT ON github_id?
// GitHub guarantees the numeric ID is stable, while logins can be renamed.
// First login inserts a user named after the GitHub login; later logins find
// the same row by ID. If that login is already taken by a password user, the
// sign-in fails with a conflict rather than merging two accounts.
func (s *AuthService) LoginGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	ghID := ghUser.ID
	user := &model.User{
		Username: ghUser.Login,
		GitHubID: &ghID,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// TokenTTL is how long issued tokens live; the handler mirrors it on the cookie.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
