package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	"github.com/TomKentIntera/project-voxel-sub001/internal/event"
	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"
)

type mockServerRepository struct {
	mock.Mock
}

func (m *mockServerRepository) FindByIDAndUUID(ctx context.Context, id int64, uuid string) (*domain.Server, error) {
	args := m.Called(ctx, id, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Server), args.Error(1)
}

func (m *mockServerRepository) HasEventWithBusEventID(ctx context.Context, serverID int64, eventType, busEventID string) (bool, error) {
	args := m.Called(ctx, serverID, eventType, busEventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockServerRepository) SetStatus(ctx context.Context, serverID int64, status string) error {
	args := m.Called(ctx, serverID, status)
	return args.Error(0)
}

func (m *mockServerRepository) AppendEvent(ctx context.Context, serverID int64, eventType string, meta map[string]any) error {
	args := m.Called(ctx, serverID, eventType, meta)
	return args.Error(0)
}

func (m *mockServerRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Server, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Server), args.Error(1)
}

func (m *mockServerRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func orderedEnvelope(t *testing.T) *event.ServerOrdered {
	t.Helper()
	envelope, err := event.NewServerOrdered(
		"evt-123", "2026-08-28T12:00:00Z",
		55, "uuid-55",
		7, "premium-8gb",
		map[string]any{},
	)
	require.NoError(t, err)
	envelope.StripeSubscriptionID = "sub_abc"
	envelope.CorrelationID = "corr-1"
	return envelope
}

func pendingServer() *domain.Server {
	return &domain.Server{
		ID:     55,
		UUID:   "uuid-55",
		UserID: 7,
		Plan:   "premium-8gb",
		Status: domain.ServerStatusPending,
	}
}

func newProvisioningService(repo *mockServerRepository) *ProvisioningService {
	return NewProvisioningService(repo, slog.New(slog.DiscardHandler))
}

func TestHandleServerOrdered_TransitionsAndRecords(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(pendingServer(), nil)
	repo.On("HasEventWithBusEventID", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, "evt-123").Return(false, nil)
	repo.On("SetStatus", mock.Anything, int64(55), domain.ServerStatusProvisioning).Return(nil)
	repo.On("AppendEvent", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, map[string]any{
		"event_id":               "evt-123",
		"event_type":             event.EventTypeServerOrdered,
		"correlation_id":         "corr-1",
		"stripe_subscription_id": "sub_abc",
	}).Return(nil)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandleServerOrdered_DuplicateEventSkipped(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(pendingServer(), nil)
	repo.On("HasEventWithBusEventID", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, "evt-123").Return(true, nil)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	require.NoError(t, err)

	repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleServerOrdered_UnknownServerSkipped(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(nil, apperrors.ErrNotFound)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleServerOrdered_AlreadyProvisioningSkipsStatusWrite(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	server := pendingServer()
	server.Status = domain.ServerStatusProvisioning

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(server, nil)
	repo.On("HasEventWithBusEventID", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, "evt-123").Return(false, nil)
	repo.On("AppendEvent", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, mock.Anything).Return(nil)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	require.NoError(t, err)
	repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleServerOrdered_RepositoryErrorPropagates(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(nil, assert.AnError)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	assert.Error(t, err)
}

func TestHandleServerOrdered_AppendFailurePropagates(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(pendingServer(), nil)
	repo.On("HasEventWithBusEventID", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, "evt-123").Return(false, nil)
	repo.On("SetStatus", mock.Anything, int64(55), domain.ServerStatusProvisioning).Return(nil)
	repo.On("AppendEvent", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, mock.Anything).Return(assert.AnError)

	err := svc.HandleServerOrdered(context.Background(), orderedEnvelope(t))
	assert.Error(t, err)
}

func TestHandleServerOrdered_NullableMetaFields(t *testing.T) {
	repo := new(mockServerRepository)
	svc := newProvisioningService(repo)

	envelope := orderedEnvelope(t)
	envelope.StripeSubscriptionID = ""
	envelope.CorrelationID = ""

	repo.On("FindByIDAndUUID", mock.Anything, int64(55), "uuid-55").Return(pendingServer(), nil)
	repo.On("HasEventWithBusEventID", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, "evt-123").Return(false, nil)
	repo.On("SetStatus", mock.Anything, int64(55), domain.ServerStatusProvisioning).Return(nil)
	repo.On("AppendEvent", mock.Anything, int64(55), domain.ServerEventProvisioningStarted, map[string]any{
		"event_id":               "evt-123",
		"event_type":             event.EventTypeServerOrdered,
		"correlation_id":         nil,
		"stripe_subscription_id": nil,
	}).Return(nil)

	err := svc.HandleServerOrdered(context.Background(), envelope)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
