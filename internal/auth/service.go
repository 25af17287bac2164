package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"

	"github.com/TomKentIntera/project-voxel-sub001/internal/repository"
)

// Token type claims.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token lifetimes. Access tokens are stateless so they stay
// reasonably short; refresh tokens are revocable via the database.
const (
	DefaultAccessTokenTTL  = 7 * 24 * time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	minTokenTTL = time.Minute
)

// TokenService issues and resolves the platform's access and refresh
// tokens. Access tokens are stateless; refresh tokens are persisted (as a
// hash) so they can be revoked and rotated.
type TokenService struct {
	codec      *Codec
	tokens     repository.AuthTokenRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewTokenService creates a token service. Zero TTLs select the defaults;
// sub-minute TTLs are clamped up to one minute.
func NewTokenService(
	codec *Codec,
	tokens repository.AuthTokenRepository,
	accessTTL, refreshTTL time.Duration,
	logger *slog.Logger,
) *TokenService {
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if accessTTL < minTokenTTL {
		accessTTL = minTokenTTL
	}
	if refreshTTL < minTokenTTL {
		refreshTTL = minTokenTTL
	}

	return &TokenService{
		codec:      codec,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// IssueAccessToken creates a short-lived stateless access token.
func (s *TokenService) IssueAccessToken(userID int64) (string, error) {
	now := time.Now()
	return s.codec.Encode(map[string]any{
		"sub":  userID,
		"type": TokenTypeAccess,
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessTTL).Unix(),
	})
}

// IssueRefreshToken creates a refresh token and persists its hash so it can
// be revoked later. The jti claim is entropy only; lookup is by token hash.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID int64) (string, error) {
	jti, err := randomTokenID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.refreshTTL)

	raw, err := s.codec.Encode(map[string]any{
		"sub":  userID,
		"type": TokenTypeRefresh,
		"jti":  jti,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	if err := s.tokens.Create(ctx, userID, HashToken(raw), expiresAt); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return raw, nil
}

// IssuePair issues a fresh access+refresh token pair for the user.
func (s *TokenService) IssuePair(ctx context.Context, userID int64) (accessToken, refreshToken string, err error) {
	accessToken, err = s.IssueAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err = s.IssueRefreshToken(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// UserIDFromAccessToken resolves the user behind a valid access token.
// Tokens without a type claim are accepted as legacy access tokens. Any
// failure resolves to "no identity" — callers return a uniform 401.
func (s *TokenService) UserIDFromAccessToken(token string) (int64, bool) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return 0, false
	}

	if typ, present := claims["type"]; present {
		if str, ok := typ.(string); !ok || str != TokenTypeAccess {
			return 0, false
		}
	}

	sub, ok := numericClaim(claims, "sub")
	if !ok {
		return 0, false
	}
	return sub, true
}

// UserIDFromRefreshToken resolves the user behind a valid refresh token.
// Beyond signature and expiry, the persisted record must exist and be
// active: the database is authoritative for revocation.
func (s *TokenService) UserIDFromRefreshToken(ctx context.Context, token string) (int64, bool) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return 0, false
	}

	if typ, _ := claims["type"].(string); typ != TokenTypeRefresh {
		return 0, false
	}

	sub, ok := numericClaim(claims, "sub")
	if !ok {
		return 0, false
	}

	record, err := s.tokens.GetByHash(ctx, HashToken(token))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.ErrorContext(ctx, "refresh token lookup failed",
				slog.String("error", err.Error()),
			)
		}
		return 0, false
	}

	if !record.IsActive(time.Now()) {
		return 0, false
	}

	return sub, true
}

// RevokeRefreshToken revokes the presented refresh token. Unknown tokens
// are a no-op, not an error.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, HashToken(token))
}

// RevokeAllRefreshTokens revokes every active refresh token of the user
// (logout-everywhere).
func (s *TokenService) RevokeAllRefreshTokens(ctx context.Context, userID int64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// HashToken produces the irreversible hash under which a raw refresh token
// is stored and looked up.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomTokenID returns 32 bytes of entropy, hex-encoded.
func randomTokenID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
