package repository

import (
	"context"
	"sync"
	"time"

	"marpro/internal/models"

	"github.com/patrickmn/go-cache"
)

// MemorySessionRepository keeps sessions in process. Sessions do not survive
// a restart.
type MemorySessionRepository struct {
	sessions *cache.Cache
	limits   *cache.Cache
	mu       sync.Mutex
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: cache.New(cache.NoExpiration, 10*time.Minute),
		limits:   cache.New(cache.NoExpiration, time.Minute),
	}
}

func (r *MemorySessionRepository) SaveSession(_ context.Context, session *models.AdminSession) error {
	stored := *session
	r.sessions.Set(session.ID, &stored, time.Until(session.ExpiresAt))
	return nil
}

func (r *MemorySessionRepository) GetSession(_ context.Context, id string) (*models.AdminSession, error) {
	val, ok := r.sessions.Get(id)
	if !ok {
		return nil, nil
	}
	session := *val.(*models.AdminSession)
	if session.Expired(time.Now()) {
		return nil, nil
	}
	return &session, nil
}

func (r *MemorySessionRepository) DeleteSession(_ context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry := &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	if val, ok := r.limits.Get(key); ok {
		prev := val.(*rateLimitEntry)
		if now.Before(prev.expiresAt) {
			prev.count++
			entry = prev
		}
	}

	r.limits.Set(key, entry, time.Until(entry.expiresAt))
	return entry.count <= limit, nil
}
