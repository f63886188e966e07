package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// AuthService authenticates plant personnel and issues tokens.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService constructs the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// LoginResult carries the issued token and its subject.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewUnauthorized("invalid credentials")
		}
		return nil, util.MapError(err)
	}
	if !user.Active {
		return nil, util.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, util.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, util.MapError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ChangePassword rotates a user's own password after verifying the current
// one. The new hash uses the configured bcrypt cost.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return util.NewValidationError("new password must be at least 8 characters", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return util.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return util.NewUnauthorized("current password incorrect")
	}

	hashed, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return util.MapError(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		return util.MapError(err)
	}
	return nil
}
