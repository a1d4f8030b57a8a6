package session

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// MemoryStore keeps session history in process memory. Used in tests and
// single-node deployments without Redis.
type MemoryStore struct {
	mu         sync.RWMutex
	histories  map[string][]turn.Message
	maxHistory int
}

// NewMemoryStore creates an empty in-memory store. maxHistory bounds the
// history returned per session; zero means unbounded.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		histories:  make(map[string][]turn.Message),
		maxHistory: maxHistory,
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...turn.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = append(s.histories[sessionID], msgs...)
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, sessionID string) ([]turn.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[sessionID]
	out := make([]turn.Message, len(history))
	copy(out, history)
	return truncate(out, s.maxHistory), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
