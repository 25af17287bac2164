package domain

import (
	"time"
)

// Server statuses. Provisioning is entered when a paid order event arrives;
// the node agent moves the server onward from there.
const (
	ServerStatusPending      = "pending"
	ServerStatusProvisioning = "provisioning"
	ServerStatusActive       = "active"
	ServerStatusSuspended    = "suspended"
	ServerStatusTerminated   = "terminated"
)

// Server event types recorded in the server's audit trail.
const (
	ServerEventProvisioningStarted = "server.provisioning_started"
)

// Server is a game server instance owned by a user.
type Server struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServerEvent is an audit-trail entry attached to a server. Meta carries
// event-specific details; for bus-driven entries it includes the originating
// bus event id, which is what makes consumption idempotent.
type ServerEvent struct {
	ID        int64          `json:"id"`
	ServerID  int64          `json:"server_id"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	Type      string         `json:"type"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}
