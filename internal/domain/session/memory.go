package session

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type entry struct {
	state    State
	lastSeen time.Time
}

// MemoryStore keeps session state in process memory. Sessions idle for
// longer than the TTL are evicted by Cleanup.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewMemoryStore creates a MemoryStore evicting sessions idle for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Load returns a copy of the state for id without creating it.
func (s *MemoryStore) Load(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return State{}, nil
	}
	e.lastSeen = s.now()
	return e.state, nil
}

// Update applies fn to a copy of the state for id and stores the result.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}

	st := e.state
	fn(&st)
	e.state = st
	e.lastSeen = s.now()
	return st, nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup evicts sessions idle since before now-ttl.
func (s *MemoryStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) >= s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartCleanup runs Cleanup every interval until ctx is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Cleanup(now)
			}
		}
	}()
}
