package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateTicket(t *testing.T) {
	store := NewMemoryStore()

	ticket, err := store.CreateTicket(context.Background(), Ticket{
		SessionID:   "s1",
		UserID:      "u1",
		Description: "printer on fire",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "open", ticket.Status)
	assert.False(t, ticket.CreatedAt.IsZero())

	stored := store.Tickets()
	require.Len(t, stored, 1)
	assert.Equal(t, ticket.ID, stored[0].ID)
}

func TestMemoryStoreCreateQuoteAndAppointment(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	quote, err := store.CreateQuote(ctx, Quote{SessionID: "s1", Request: "install quote"})
	require.NoError(t, err)
	assert.NotEmpty(t, quote.ID)

	appt, err := store.CreateAppointment(ctx, Appointment{SessionID: "s1", Request: "demo friday"})
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
	assert.NotEqual(t, quote.ID, appt.ID)
}
