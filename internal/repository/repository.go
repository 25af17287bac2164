// Package repository defines the persistence interfaces consumed by the
// auth and provisioning layers. PostgreSQL implementations live in the
// postgres subpackage.
package repository

import (
	"context"
	"time"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
)

// AuthTokenRepository stores refresh-token records. The database record is
// authoritative for revocation: a structurally valid refresh token without
// an active record is dead.
type AuthTokenRepository interface {
	// Create persists a new refresh record keyed by token hash.
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error

	// GetByHash returns the record for the hash, or apperrors.ErrNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error)

	// Revoke marks the record revoked. Unknown hashes are a no-op.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllForUser revokes every active record belonging to the user.
	RevokeAllForUser(ctx context.Context, userID int64) error

	// PurgeExpiredBefore deletes records whose expiry is before the cutoff,
	// regardless of revocation status, and returns the number deleted.
	PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository reads platform accounts for authentication.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ServerRepository is the store consulted when applying server order events.
type ServerRepository interface {
	// FindByIDAndUUID returns the server matching both identifiers, or
	// apperrors.ErrNotFound. Requiring the uuid too guards against id reuse
	// across environments sharing a bus.
	FindByIDAndUUID(ctx context.Context, id int64, uuid string) (*domain.Server, error)

	// HasEventWithBusEventID reports whether an audit entry of the given
	// type already references the bus event id.
	HasEventWithBusEventID(ctx context.Context, serverID int64, eventType, busEventID string) (bool, error)

	// SetStatus updates the server's status.
	SetStatus(ctx context.Context, serverID int64, status string) error

	// AppendEvent inserts an audit entry. Inserts carrying a bus event id
	// already present for the same server and type are ignored (the unique
	// index makes the check-and-insert atomic under concurrent consumers).
	AppendEvent(ctx context.Context, serverID int64, eventType string, meta map[string]any) error

	// ListByUser returns the user's servers, newest first.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Server, error)

	// CountByUser returns how many servers the user owns.
	CountByUser(ctx context.Context, userID int64) (int, error)
}
