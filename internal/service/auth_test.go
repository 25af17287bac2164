package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/TomKentIntera/project-voxel-sub001/internal/auth"
	"github.com/TomKentIntera/project-voxel-sub001/internal/domain"
	apperrors "github.com/TomKentIntera/project-voxel-sub001/pkg/errors"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// memoryTokenStore is an in-memory repository.AuthTokenRepository so the
// rotation protocol can be exercised end to end.
type memoryTokenStore struct {
	records map[string]*domain.AuthToken
	nextID  int64
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{records: make(map[string]*domain.AuthToken)}
}

func (s *memoryTokenStore) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	s.nextID++
	s.records[tokenHash] = &domain.AuthToken{
		ID:        s.nextID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *memoryTokenStore) GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	record, ok := s.records[tokenHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return record, nil
}

func (s *memoryTokenStore) Revoke(ctx context.Context, tokenHash string) error {
	if record, ok := s.records[tokenHash]; ok && record.RevokedAt == nil {
		now := time.Now()
		record.RevokedAt = &now
	}
	return nil
}

func (s *memoryTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	now := time.Now()
	for _, record := range s.records {
		if record.UserID == userID && record.RevokedAt == nil {
			record.RevokedAt = &now
		}
	}
	return nil
}

func (s *memoryTokenStore) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for hash, record := range s.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.records, hash)
			deleted++
		}
	}
	return deleted, nil
}

func testUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           7,
		Email:        "jo@example.com",
		Name:         "Jo",
		PasswordHash: string(hash),
	}
}

func newAuthService(t *testing.T, users *mockUserRepository, store *memoryTokenStore) *AuthService {
	t.Helper()
	codec, err := auth.NewCodec(auth.CodecConfig{Secret: "unit-test-secret"})
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	tokens := auth.NewTokenService(codec, store, 0, 0, logger)
	return NewAuthService(users, tokens, logger)
}

func TestLogin_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	users.On("GetByEmail", mock.Anything, "jo@example.com").Return(testUser(t, "s3cret-pass"), nil)

	user, pair, err := svc.Login(context.Background(), "jo@example.com", "s3cret-pass")
	require.NoError(t, err)

	assert.Equal(t, int64(7), user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	users.On("GetByEmail", mock.Anything, "jo@example.com").Return(testUser(t, "s3cret-pass"), nil)

	_, _, err := svc.Login(context.Background(), "jo@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_RotatesToken(t *testing.T) {
	users := new(mockUserRepository)
	store := newMemoryTokenStore()
	svc := newAuthService(t, users, store)

	users.On("GetByEmail", mock.Anything, "jo@example.com").Return(testUser(t, "s3cret-pass"), nil)

	_, pair, err := svc.Login(context.Background(), "jo@example.com", "s3cret-pass")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old refresh token must be dead after rotation.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// The new one still works.
	_, err = svc.Refresh(context.Background(), rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_GarbageToken(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogout_KillsRefreshToken(t *testing.T) {
	users := new(mockUserRepository)
	store := newMemoryTokenStore()
	svc := newAuthService(t, users, store)

	users.On("GetByEmail", mock.Anything, "jo@example.com").Return(testUser(t, "s3cret-pass"), nil)

	_, pair, err := svc.Login(context.Background(), "jo@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogout_UnknownTokenIsNoOp(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	err := svc.Logout(context.Background(), "unknown-token")
	assert.NoError(t, err)
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	users := new(mockUserRepository)
	store := newMemoryTokenStore()
	svc := newAuthService(t, users, store)

	users.On("GetByEmail", mock.Anything, "jo@example.com").Return(testUser(t, "s3cret-pass"), nil)

	_, first, err := svc.Login(context.Background(), "jo@example.com", "s3cret-pass")
	require.NoError(t, err)
	_, second, err := svc.Login(context.Background(), "jo@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(context.Background(), 7))

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = svc.Refresh(context.Background(), second.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestProfile_DeletedAccount(t *testing.T) {
	users := new(mockUserRepository)
	svc := newAuthService(t, users, newMemoryTokenStore())

	users.On("GetByID", mock.Anything, int64(7)).Return(nil, apperrors.ErrNotFound)

	_, err := svc.Profile(context.Background(), 7)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
