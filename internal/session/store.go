// Package session persists per-session conversation history.
//
// The store is append-only from the orchestrator's point of view: turns
// append (role, text) pairs and read back the ordered history; nothing in
// the core ever deletes it. Expiry is the backend's concern.
package session

import (
	"context"

	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// Store is the session history contract.
type Store interface {
	// Append adds messages to the end of the session history.
	Append(ctx context.Context, sessionID string, msgs ...turn.Message) error

	// History returns the ordered history for a session, oldest first,
	// truncated to the store's configured maximum. A missing session
	// yields an empty history, not an error.
	History(ctx context.Context, sessionID string) ([]turn.Message, error)

	// Close releases backend resources.
	Close() error
}

// truncate keeps the most recent max messages.
func truncate(history []turn.Message, max int) []turn.Message {
	if max > 0 && len(history) > max {
		return history[len(history)-max:]
	}
	return history
}
