package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
)

// MemoryStore is an in-process Store for tests and single-node runs.
// Expired records are dropped lazily on access.
type MemoryStore struct {
	mu    sync.Mutex
	clock clock.Clock
	recs  map[string]Record
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clock: clk, recs: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) PutIfAbsent(_ context.Context, rec Record, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(rec.Key); ok {
		return false, nil
	}
	s.recs[rec.Key] = rec
	return true, nil
}

func (s *MemoryStore) Update(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, key)
	return nil
}

// live returns the record if present and unexpired, evicting it otherwise.
// Callers must hold the mutex.
func (s *MemoryStore) live(key string) (Record, bool) {
	rec, ok := s.recs[key]
	if !ok {
		return Record{}, false
	}
	if !rec.ExpiresAt.After(s.clock.Now()) {
		delete(s.recs, key)
		return Record{}, false
	}
	return rec, true
}
