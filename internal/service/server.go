package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TomKentIntera/project-voxel-sub001/pkg/pagination"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	"github.com/TomKentIntera/project-voxel-sub001/internal/repository"
)

// ServerService exposes read access to a user's servers.
type ServerService struct {
	servers repository.ServerRepository
	logger  *slog.Logger
}

// NewServerService creates a server query service.
func NewServerService(servers repository.ServerRepository, logger *slog.Logger) *ServerService {
	return &ServerService{servers: servers, logger: logger}
}

// ListForUser returns a page of the user's servers, newest first.
func (s *ServerService) ListForUser(ctx context.Context, userID int64, params pagination.Params) (*pagination.Result[domain.Server], error) {
	total, err := s.servers.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count servers: %w", err)
	}

	servers, err := s.servers.ListByUser(ctx, userID, params.PerPage, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	result := pagination.NewResult(servers, total, params)
	return &result, nil
}
