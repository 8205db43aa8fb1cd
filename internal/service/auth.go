// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/token
// layers:
//
//	AuthHandler (HTTP) → AuthService (flow rules) → UserRepository (store)
//	                   ↘ TokenService (JWT)
//
// It owns the provision-and-issue half of the login flow: given a verified
// external identity, resolve or create the local user and mint the token
// pair. It does not read requests, set cookies, or choose delivery modes —
// those are HTTP concerns that stay in the handler.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gmarinow/auth-gateway/internal/apperror"
	"github.com/gmarinow/auth-gateway/internal/auth"
	"github.com/gmarinow/auth-gateway/internal/model"
	"github.com/gmarinow/auth-gateway/internal/repository"
)

// AuthService handles the login flow's provisioning and issuance rules.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService. Dependencies are injected by the
// server's composition root.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// LoginResult bundles the resolved user with the freshly issued token pair
// so the handler can pick a delivery mode and respond in one step.
type LoginResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// Login completes a verified callback: resolve the user by email, provision
// on first login, and mint the access+refresh pair.
//
// Provisioning and issuance are deliberately not transactional. If token
// signing failed after a user was created, the user stays — the next login
// attempt finds the record and simply issues tokens. At-least-provisioned
// beats a rollback dance here.
func (s *AuthService) Login(ctx context.Context, identity *auth.Identity) (*LoginResult, error) {
	if identity == nil || identity.Email == "" {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	user, err := s.users.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		// Existing account — nothing to update; the flow never mutates
		// user records after creation.
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.users.CreateIfAbsent(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("service/auth: provisioning user %s: %w", identity.Email, err)
		}
		s.logger.Info("user provisioned on first login",
			slog.String("userID", user.ID),
			slog.String("provider", user.Provider),
		)
	default:
		return nil, fmt.Errorf("service/auth: resolving user %s: %w", identity.Email, err)
	}

	accessToken, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing access token for user %s: %w", user.ID, err)
	}
	refreshToken, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing refresh token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", user.Provider),
	)

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// GetUserByEmail returns the user record for an authenticated subject.
// Used by the /api/me handler after the middleware validates the access
// token and extracts the email from its subject claim.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email must not be empty")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", email, err)
	}

	return user, nil
}
