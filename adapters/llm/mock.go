package llm

import (
	"context"
	"sync"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// MockLLM is a canned-response model for tests and offline development.
type MockLLM struct {
	// Reply is returned for every SendMessage call.
	Reply string
	// GenerateErr, when set, fails GenerateChat.
	GenerateErr error
	// SendErr, when set, fails SendMessage.
	SendErr error
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

func (m *MockLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	return &mockChatSession{
		parent:  m,
		history: append([]repositories.ChatMessage(nil), history...),
	}, nil
}

type mockChatSession struct {
	parent *MockLLM

	mu      sync.Mutex
	history []repositories.ChatMessage
}

func (s *mockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	if s.parent.SendErr != nil {
		return repositories.ChatMessage{}, s.parent.SendErr
	}
	if err := ctx.Err(); err != nil {
		return repositories.ChatMessage{}, err
	}
	reply := repositories.ChatMessage{Role: repositories.AssistantRole, Content: s.parent.Reply}
	s.mu.Lock()
	s.history = append(s.history, message, reply)
	s.mu.Unlock()
	return reply, nil
}

func (s *mockChatSession) History() ([]repositories.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repositories.ChatMessage(nil), s.history...), nil
}
