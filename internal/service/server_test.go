package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/pagination"
)

func TestListForUser_ReturnsPage(t *testing.T) {
	repo := new(mockServerRepository)
	svc := NewServerService(repo, slog.New(slog.DiscardHandler))

	servers := []domain.Server{
		{ID: 2, UUID: "uuid-2", UserID: 7, Plan: "premium-8gb", Status: domain.ServerStatusActive},
		{ID: 1, UUID: "uuid-1", UserID: 7, Plan: "starter-2gb", Status: domain.ServerStatusPending},
	}
	repo.On("CountByUser", mock.Anything, int64(7)).Return(45, nil)
	repo.On("ListByUser", mock.Anything, int64(7), 20, 0).Return(servers, nil)

	result, err := svc.ListForUser(context.Background(), 7, pagination.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, servers, result.Data)
	assert.Equal(t, 45, result.TotalCount)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
	assert.False(t, result.HasPrev)
}

func TestListForUser_SecondPageOffset(t *testing.T) {
	repo := new(mockServerRepository)
	svc := NewServerService(repo, slog.New(slog.DiscardHandler))

	repo.On("CountByUser", mock.Anything, int64(7)).Return(12, nil)
	repo.On("ListByUser", mock.Anything, int64(7), 10, 10).Return([]domain.Server{{ID: 3, UserID: 7}}, nil)

	result, err := svc.ListForUser(context.Background(), 7, pagination.Params{Page: 2, PerPage: 10, Offset: 10})
	require.NoError(t, err)

	assert.Len(t, result.Data, 1)
	assert.False(t, result.HasNext)
	assert.True(t, result.HasPrev)
}

func TestListForUser_CountErrorPropagates(t *testing.T) {
	repo := new(mockServerRepository)
	svc := NewServerService(repo, slog.New(slog.DiscardHandler))

	repo.On("CountByUser", mock.Anything, int64(7)).Return(0, assert.AnError)

	_, err := svc.ListForUser(context.Background(), 7, pagination.DefaultParams())
	assert.Error(t, err)
	repo.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListForUser_ListErrorPropagates(t *testing.T) {
	repo := new(mockServerRepository)
	svc := NewServerService(repo, slog.New(slog.DiscardHandler))

	repo.On("CountByUser", mock.Anything, int64(7)).Return(5, nil)
	repo.On("ListByUser", mock.Anything, int64(7), 20, 0).Return(nil, assert.AnError)

	_, err := svc.ListForUser(context.Background(), 7, pagination.DefaultParams())
	assert.Error(t, err)
}
