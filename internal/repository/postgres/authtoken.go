// Package postgres implements the repository interfaces on PostgreSQL via
// pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TomKentIntera/project-voxel-sub001/pkg/database"
	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
)

// AuthTokenRepository implements repository.AuthTokenRepository on
// PostgreSQL.
type AuthTokenRepository struct {
	pool database.DBTX
}

// NewAuthTokenRepository creates a PostgreSQL-backed auth token repository.
func NewAuthTokenRepository(pool database.DBTX) *AuthTokenRepository {
	return &AuthTokenRepository{pool: pool}
}

// Create inserts a refresh record keyed by token hash.
func (r *AuthTokenRepository) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO auth_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, now())`

	if _, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

// GetByHash fetches the record for a token hash.
func (r *AuthTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM auth_tokens
		WHERE token_hash = $1`

	var token domain.AuthToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	return &token, nil
}

// Revoke marks the record revoked. Unknown or already revoked hashes are a
// no-op.
func (r *AuthTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE auth_tokens
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("revoke auth token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active record belonging to the user.
func (r *AuthTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	query := `
		UPDATE auth_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke auth tokens for user: %w", err)
	}
	return nil
}

// PurgeExpiredBefore deletes records whose expiry is before the cutoff,
// revoked or not, and returns the number deleted.
func (r *AuthTokenRepository) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge auth tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
