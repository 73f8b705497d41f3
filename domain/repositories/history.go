package repositories

import (
	"context"

	"github.com/Error404m/aws-voice-bot/domain/entities"
)

// HistoryStore persists per-session conversation turns so they survive the
// connection and can be read back over the API.
type HistoryStore interface {
	// AppendTurn records a completed turn for a session.
	AppendTurn(ctx context.Context, sessionID string, turn entities.ChatTurn) error
	// Turns returns all recorded turns for a session, oldest first.
	Turns(ctx context.Context, sessionID string) ([]entities.ChatTurn, error)
	// Delete removes a session's history.
	Delete(ctx context.Context, sessionID string) error
	// Close releases the underlying connection.
	Close() error
}
