package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"marpro/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) SaveSession(ctx context.Context, session *models.AdminSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockRepo) GetSession(ctx context.Context, id string) (*models.AdminSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminSession), args.Error(1)
}

func (m *mockRepo) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func newFailover(primary, fallback *mockRepo) *FailoverSessionRepository {
	logger := zerolog.New(io.Discard)
	return NewFailoverSessionRepository(primary, fallback, &logger)
}

func TestFailover_PrimarySuccess(t *testing.T) {
	primary, fallback := new(mockRepo), new(mockRepo)
	repo := newFailover(primary, fallback)
	ctx := context.Background()

	session := &models.AdminSession{ID: "s1"}
	primary.On("GetSession", ctx, "s1").Return(session, nil).Once()

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session, got)
	primary.AssertExpectations(t)
	fallback.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestFailover_SwitchesToFallbackAndRecovers(t *testing.T) {
	primary, fallback := new(mockRepo), new(mockRepo)
	repo := newFailover(primary, fallback)
	ctx := context.Background()

	now := time.Now()
	repo.now = func() time.Time { return now }

	primary.On("CheckRateLimit", ctx, "login:a", 5, time.Minute).Return(false, errors.New("redis down")).Once()
	fallback.On("CheckRateLimit", ctx, "login:a", 5, time.Minute).Return(true, nil).Twice()

	allowed, err := repo.CheckRateLimit(ctx, "login:a", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, repo.isDown.Load())

	// still within the recovery interval: primary is not touched
	allowed, err = repo.CheckRateLimit(ctx, "login:a", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	primary.AssertNumberOfCalls(t, "CheckRateLimit", 1)

	now = now.Add(2 * time.Minute)
	primary.On("CheckRateLimit", ctx, "login:a", 5, time.Minute).Return(false, nil).Once()

	allowed, err = repo.CheckRateLimit(ctx, "login:a", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.False(t, repo.isDown.Load())

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestFailover_GetSessionChecksFallbackOnMiss(t *testing.T) {
	primary, fallback := new(mockRepo), new(mockRepo)
	repo := newFailover(primary, fallback)
	ctx := context.Background()

	session := &models.AdminSession{ID: "s2"}
	primary.On("GetSession", ctx, "s2").Return(nil, nil).Once()
	fallback.On("GetSession", ctx, "s2").Return(session, nil).Once()

	got, err := repo.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestFailover_SaveAndDelete(t *testing.T) {
	primary, fallback := new(mockRepo), new(mockRepo)
	repo := newFailover(primary, fallback)
	ctx := context.Background()

	session := &models.AdminSession{ID: "s3"}
	primary.On("SaveSession", ctx, session).Return(errors.New("timeout")).Once()
	fallback.On("SaveSession", ctx, session).Return(nil).Once()
	require.NoError(t, repo.SaveSession(ctx, session))

	fallback.On("DeleteSession", ctx, "s3").Return(nil).Once()
	require.NoError(t, repo.DeleteSession(ctx, "s3"))

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
	primary.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
}
