// Package service holds the domain services that sit between transports
// (HTTP handlers, the queue consumer) and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	"github.com/TomKentIntera/project-voxel-sub001/internal/event"
	"github.com/TomKentIntera/project-voxel-sub001/internal/repository"
)

// ProvisioningService reacts to paid server orders by moving the server
// into provisioning. It is the consumer-side handler for server.ordered.v1.
type ProvisioningService struct {
	servers repository.ServerRepository
	logger  *slog.Logger
}

// NewProvisioningService creates a provisioning service.
func NewProvisioningService(servers repository.ServerRepository, logger *slog.Logger) *ProvisioningService {
	return &ProvisioningService{servers: servers, logger: logger}
}

// HandleServerOrdered applies a server order event idempotently. The bus
// delivers at least once, so duplicates are expected: an audit entry
// already carrying this event id means the work is done and the call is a
// no-op. An unknown server is logged and skipped rather than failed, since
// retrying can never make it exist.
//
// Returning an error keeps the message in the queue for redelivery.
func (s *ProvisioningService) HandleServerOrdered(ctx context.Context, envelope *event.ServerOrdered) error {
	server, err := s.servers.FindByIDAndUUID(ctx, envelope.ServerID, envelope.ServerUUID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "server ordered event for unknown server",
				slog.Int64("server_id", envelope.ServerID),
				slog.String("server_uuid", envelope.ServerUUID),
				slog.String("event_id", envelope.EventID),
			)
			return nil
		}
		return fmt.Errorf("find server: %w", err)
	}

	seen, err := s.servers.HasEventWithBusEventID(ctx, server.ID, domain.ServerEventProvisioningStarted, envelope.EventID)
	if err != nil {
		return fmt.Errorf("check event history: %w", err)
	}
	if seen {
		s.logger.InfoContext(ctx, "duplicate server ordered event skipped",
			slog.Int64("server_id", server.ID),
			slog.String("event_id", envelope.EventID),
		)
		return nil
	}

	if server.Status != domain.ServerStatusProvisioning {
		if err := s.servers.SetStatus(ctx, server.ID, domain.ServerStatusProvisioning); err != nil {
			return fmt.Errorf("set server status: %w", err)
		}
	}

	meta := map[string]any{
		"event_id":               envelope.EventID,
		"event_type":             event.EventTypeServerOrdered,
		"correlation_id":         nullableString(envelope.CorrelationID),
		"stripe_subscription_id": nullableString(envelope.StripeSubscriptionID),
	}
	if err := s.servers.AppendEvent(ctx, server.ID, domain.ServerEventProvisioningStarted, meta); err != nil {
		return fmt.Errorf("append server event: %w", err)
	}

	s.logger.InfoContext(ctx, "server provisioning started",
		slog.Int64("server_id", server.ID),
		slog.String("event_id", envelope.EventID),
		slog.String("plan", envelope.Plan),
	)
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
