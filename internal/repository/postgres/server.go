package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TomKentIntera/project-voxel-sub001/pkg/database"
	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
)

// ServerRepository implements repository.ServerRepository on PostgreSQL.
type ServerRepository struct {
	pool database.DBTX
}

// NewServerRepository creates a PostgreSQL-backed server repository.
func NewServerRepository(pool database.DBTX) *ServerRepository {
	return &ServerRepository{pool: pool}
}

// FindByIDAndUUID fetches the server matching both identifiers.
func (r *ServerRepository) FindByIDAndUUID(ctx context.Context, id int64, uuid string) (*domain.Server, error) {
	query := `
		SELECT id, uuid, user_id, name, plan, status, created_at, updated_at
		FROM servers
		WHERE id = $1 AND uuid = $2`

	var server domain.Server
	err := r.pool.QueryRow(ctx, query, id, uuid).Scan(
		&server.ID,
		&server.UUID,
		&server.UserID,
		&server.Name,
		&server.Plan,
		&server.Status,
		&server.CreatedAt,
		&server.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	return &server, nil
}

// HasEventWithBusEventID reports whether an audit entry of the given type
// already references the bus event id.
func (r *ServerRepository) HasEventWithBusEventID(ctx context.Context, serverID int64, eventType, busEventID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM server_events
			WHERE server_id = $1 AND type = $2 AND meta->>'event_id' = $3
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, serverID, eventType, busEventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check server event: %w", err)
	}
	return exists, nil
}

// SetStatus updates the server's status.
func (r *ServerRepository) SetStatus(ctx context.Context, serverID int64, status string) error {
	query := `UPDATE servers SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, serverID, status)
	if err != nil {
		return fmt.Errorf("set server status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AppendEvent inserts an audit entry. The partial unique index on
// (server_id, type, meta->>'event_id') makes ON CONFLICT DO NOTHING absorb
// concurrent inserts of the same bus event, so check-then-insert stays
// race-free across overlapping consumers.
func (r *ServerRepository) AppendEvent(ctx context.Context, serverID int64, eventType string, meta map[string]any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}

	query := `
		INSERT INTO server_events (server_id, actor_id, type, meta, created_at)
		VALUES ($1, NULL, $2, $3, now())
		ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, serverID, eventType, metaJSON); err != nil {
		return fmt.Errorf("insert server event: %w", err)
	}
	return nil
}

// ListByUser returns the user's servers, newest first.
func (r *ServerRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Server, error) {
	query := `
		SELECT id, uuid, user_id, name, plan, status, created_at, updated_at
		FROM servers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	servers := make([]domain.Server, 0)
	for rows.Next() {
		var server domain.Server
		if err := rows.Scan(
			&server.ID,
			&server.UUID,
			&server.UserID,
			&server.Name,
			&server.Plan,
			&server.Status,
			&server.CreatedAt,
			&server.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

// CountByUser returns how many servers the user owns.
func (r *ServerRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM servers WHERE user_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count servers: %w", err)
	}
	return count, nil
}
