package actions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps actions in process memory for tests and dev.
type MemoryStore struct {
	mu           sync.Mutex
	tickets      []Ticket
	quotes       []Quote
	appointments []Appointment
}

// NewMemoryStore creates an empty in-memory action store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// CreateTicket implements Store.
func (s *MemoryStore) CreateTicket(_ context.Context, t Ticket) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	t.Status = "open"
	t.CreatedAt = time.Now()
	s.tickets = append(s.tickets, t)
	return &t, nil
}

// CreateQuote implements Store.
func (s *MemoryStore) CreateQuote(_ context.Context, q Quote) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = uuid.NewString()
	q.CreatedAt = time.Now()
	s.quotes = append(s.quotes, q)
	return &q, nil
}

// CreateAppointment implements Store.
func (s *MemoryStore) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	s.appointments = append(s.appointments, a)
	return &a, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Tickets returns stored tickets. Test helper.
func (s *MemoryStore) Tickets() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}
