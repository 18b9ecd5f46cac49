package session

import (
	"context"
	"sync"
	"time"

	"github.com/ecomarket/ecobot/internal/flow"
)

type memoryEntry struct {
	state   flow.State
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	closed  bool
	locks   KeyedMutex
}

// NewMemoryStore creates a MemoryStore. A zero ttl keeps entries until
// they return to Idle.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (flow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return flow.State{}, ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return flow.State{}, nil
	}
	if s.expired(e) {
		delete(s.entries, id)
		return flow.State{}, nil
	}
	return e.state, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, state flow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if state.Phase() == flow.PhaseIdle {
		delete(s.entries, id)
		return nil
	}
	e := memoryEntry{state: state}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, id)
	return nil
}

// Lock serializes users of this store on id. Waiting does not observe ctx.
func (s *MemoryStore) Lock(_ context.Context, id string) (func(), error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.locks.Lock(id), nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until stop is called. stop waits
// for a sweep in progress.
func (s *MemoryStore) StartSweeper(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}
