package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

// SupabaseStore persists actions to Supabase tables (tickets, quotes,
// appointments) via PostgREST.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore creates a Supabase-backed action store.
func NewSupabaseStore(cfg config.SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey.Value(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// CreateTicket implements Store.
func (s *SupabaseStore) CreateTicket(ctx context.Context, t Ticket) (*Ticket, error) {
	t.ID = uuid.NewString()
	t.Status = "open"
	t.CreatedAt = time.Now()

	var inserted []Ticket
	_, err := s.client.From("tickets").
		Insert(t, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	if len(inserted) == 0 {
		return &t, nil
	}
	return &inserted[0], nil
}

// CreateQuote implements Store.
func (s *SupabaseStore) CreateQuote(ctx context.Context, q Quote) (*Quote, error) {
	q.ID = uuid.NewString()
	q.CreatedAt = time.Now()

	var inserted []Quote
	_, err := s.client.From("quotes").
		Insert(q, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	if len(inserted) == 0 {
		return &q, nil
	}
	return &inserted[0], nil
}

// CreateAppointment implements Store.
func (s *SupabaseStore) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()

	var inserted []Appointment
	_, err := s.client.From("appointments").
		Insert(a, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	if len(inserted) == 0 {
		return &a, nil
	}
	return &inserted[0], nil
}

// Close implements Store. The PostgREST client holds no connection state.
func (s *SupabaseStore) Close() error { return nil }
