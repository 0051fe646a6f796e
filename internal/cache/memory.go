// Package cache holds the last good backend responses served when the
// backend is down.
package cache

import (
	"context"
	"sync"
	"time"

	"ppe-dashboard/internal/backend"
)

type entry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryStore keeps bodies in process. Entries expire after ttl; a zero ttl
// keeps them forever.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemory(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), e.body...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, body []byte) error {
	e := entry{body: append([]byte(nil), body...)}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = e
	s.removeExpiredLocked()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) removeExpiredLocked() {
	now := s.now()
	for key, e := range s.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.items, key)
		}
	}
}

var _ backend.Store = (*MemoryStore)(nil)
