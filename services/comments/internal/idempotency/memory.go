package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	response []byte
	done     bool
	expires  time.Time
}

// memoryStore is a development-only in-memory idempotency store.
// WARNING: not suitable for production; state is lost on restart and
// is not shared across instances.
type memoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore returns an in-memory Store. ttl <= 0 means 24h.
func NewMemoryStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &memoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Reserve(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if !e.done {
			return nil, false, ErrInProgress
		}
		return e.response, false, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(s.ttl)}
	return nil, true, nil
}

func (s *memoryStore) Complete(_ context.Context, key string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{response: response, done: true, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
