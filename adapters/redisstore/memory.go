package redisstore

import (
	"context"
	"sync"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// MemoryHistoryStore keeps conversations in process memory. It backs tests
// and deployments that run without Redis.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	maxTurns int
	turns    map[string][]entities.ChatTurn
}

// NewMemoryHistoryStore creates an in-memory store. maxTurns caps the
// retained turns per conversation; zero means unlimited.
func NewMemoryHistoryStore(maxTurns int) *MemoryHistoryStore {
	return &MemoryHistoryStore{
		maxTurns: maxTurns,
		turns:    make(map[string][]entities.ChatTurn),
	}
}

var _ repositories.HistoryStore = (*MemoryHistoryStore)(nil)

func (m *MemoryHistoryStore) AppendTurn(ctx context.Context, sessionID string, turn entities.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := append(m.turns[sessionID], turn)
	if m.maxTurns > 0 && len(stored) > m.maxTurns {
		stored = stored[len(stored)-m.maxTurns:]
	}
	m.turns[sessionID] = stored
	return nil
}

func (m *MemoryHistoryStore) Turns(ctx context.Context, sessionID string) ([]entities.ChatTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.ChatTurn(nil), m.turns[sessionID]...), nil
}

func (m *MemoryHistoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

func (m *MemoryHistoryStore) Close() error {
	return nil
}
