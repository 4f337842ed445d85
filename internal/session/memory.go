package session

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// sweepInterval is the minimum time between two sweeps of expired records.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in a map. Records vanish on restart, which is
// fine for a single process and for tests.
//
// Every cookieless visit saves a record, and most are never read again, so
// Save also sweeps out expired records, at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]Data
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Data),
		now:      time.Now,
	}
}

// Get returns a copy of the record, so callers can modify it freely before
// calling Save. Expired records are dropped on read.
func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if data.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}

	data.Flash = append([]string(nil), data.Flash...)
	return &data, nil
}

// Save stores a copy of data. An already expired record is deleted instead,
// as RedisStore does.
func (s *MemoryStore) Save(_ context.Context, id string, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	if data.Expired(now) {
		delete(s.sessions, id)
		return nil
	}

	stored := *data
	stored.Flash = append([]string(nil), data.Flash...)
	s.sessions[id] = stored
	return nil
}

// sweep deletes every expired record. s.mu must be held.
func (s *MemoryStore) sweep(now time.Time) {
	for id, data := range s.sessions {
		if data.Expired(now) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
