package wizard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/cache"
)

// Session состояние мастера для одного чата.
type Session struct {
	Step   int               `json:"step"`
	Fields map[string]string `json:"fields"`
}

func newSession() *Session {
	return &Session{Fields: make(map[string]string)}
}

// SessionStore хранилище сессий мастера, ключ - id чата.
type SessionStore interface {
	// Get возвращает сессию; false, если её нет.
	Get(ctx context.Context, chatID int64) (*Session, bool, error)
	Save(ctx context.Context, chatID int64, s *Session) error
	Delete(ctx context.Context, chatID int64) error
}

// MemoryStore хранит сессии в памяти процесса. Теряются при перезапуске.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Get возвращает копию сессии.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return nil, false, nil
	}
	cp := Session{Step: s.Step, Fields: make(map[string]string, len(s.Fields))}
	for k, v := range s.Fields {
		cp.Fields[k] = v
	}
	return &cp, true, nil
}

// Save сохраняет копию сессии.
func (m *MemoryStore) Save(_ context.Context, chatID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := Session{Step: s.Step, Fields: make(map[string]string, len(s.Fields))}
	for k, v := range s.Fields {
		cp.Fields[k] = v
	}
	m.sessions[chatID] = cp
	return nil
}

// Delete удаляет сессию.
func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}

// RedisStore хранит сессии в redis, переживает перезапуск процесса.
type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisStore создаёт хранилище поверх cache.Cache. ttl продлевается при каждом сохранении.
func NewRedisStore(c *cache.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return "wizard:session:" + strconv.FormatInt(chatID, 10)
}

// Get читает сессию из redis.
func (r *RedisStore) Get(ctx context.Context, chatID int64) (*Session, bool, error) {
	const op = "wizard.RedisStore.Get"

	s := newSession()
	found, err := r.cache.Get(ctx, sessionKey(chatID), s)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, false, nil
	}
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	return s, true, nil
}

// Save записывает сессию в redis.
func (r *RedisStore) Save(ctx context.Context, chatID int64, s *Session) error {
	const op = "wizard.RedisStore.Save"

	if err := r.cache.Set(ctx, sessionKey(chatID), s, r.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет сессию из redis.
func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	const op = "wizard.RedisStore.Delete"

	if err := r.cache.Invalidate(ctx, sessionKey(chatID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
