package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"

	"github.com/TomKentIntera/project-voxel-sub001/internal/auth"
	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	"github.com/TomKentIntera/project-voxel-sub001/internal/repository"
)

// AuthService implements the account-facing auth flows: login, token
// refresh with rotation, and logout.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Login verifies the credentials and issues a token pair. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.ID))
	return user, pair, nil
}

// Refresh rotates the presented refresh token: the old token is revoked
// before the new pair is issued, so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	userID, ok := s.tokens.UserIDFromRefreshToken(ctx, refreshToken)
	if !ok {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "refresh token rotated", slog.Int64("user_id", userID))
	return pair, nil
}

// Logout revokes the presented refresh token. An unknown token still
// succeeds; the end state is the same.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// LogoutAll revokes every refresh token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	if err := s.tokens.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	s.logger.InfoContext(ctx, "all sessions revoked", slog.Int64("user_id", userID))
	return nil
}

// Profile returns the authenticated user's account.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The token outlived the account.
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID int64) (*domain.TokenPair, error) {
	access, refresh, err := s.tokens.IssuePair(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
