package repository

import (
	"context"
	"sync/atomic"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository uses primary (Redis) while it answers and
// switches to fallback (memory) after the first error. Recovery of primary
// is retried once a minute.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > recoveryInterval
}

// observe records the outcome of a primary call.
func (r *FailoverSessionRepository) observe(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("primary session repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverSessionRepository) SaveSession(ctx context.Context, session *models.AdminSession) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, session)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SaveSession(ctx, session)
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, id string) (*models.AdminSession, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, id)
		r.observe(err)
		if err == nil {
			if session != nil {
				return session, nil
			}
			// may have been created while primary was down
			return r.fallback.GetSession(ctx, id)
		}
	}
	return r.fallback.GetSession(ctx, id)
}

func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, id string) error {
	// delete from both, the session may live in either store
	fallbackErr := r.fallback.DeleteSession(ctx, id)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, id)
		r.observe(err)
	}
	return fallbackErr
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
