package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// Config holds the Gemini adapter settings.
type Config struct {
	APIKey            string
	Model             string
	SystemInstruction string
	Timeout           time.Duration
}

// GeminiLLM implements LargeLanguageModel using the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

// NewGeminiLLM creates a Gemini adapter.
func NewGeminiLLM(ctx context.Context, config Config, logger *zap.Logger) (*GeminiLLM, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &GeminiLLM{client: client, config: config, logger: logger}, nil
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

func (g *GeminiLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, message := range history {
		var role genai.Role = genai.RoleUser
		if message.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}

	generateConfig := &genai.GenerateContentConfig{}
	if g.config.SystemInstruction != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(g.config.SystemInstruction, genai.RoleUser)
	}

	chat, err := g.client.Chats.Create(ctx, g.config.Model, generateConfig, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	return &GeminiChatSession{
		chat:    chat,
		config:  g.config,
		logger:  g.logger,
		history: append([]repositories.ChatMessage(nil), history...),
	}, nil
}

// GeminiChatSession is one multi-turn conversation with the model.
type GeminiChatSession struct {
	chat   *genai.Chat
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	history []repositories.ChatMessage
}

var _ repositories.ChatSession = (*GeminiChatSession)(nil)

func (s *GeminiChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var err error
	// One retry covers transient API hiccups without stalling the turn.
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err = s.chat.SendMessage(ctx, genai.Part{Text: message.Content})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("gemini send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	if err != nil {
		return repositories.ChatMessage{}, fmt.Errorf("failed to generate response: %w", err)
	}

	replyText := resp.Text()
	if replyText == "" {
		return repositories.ChatMessage{}, fmt.Errorf("empty response from model %s", s.config.Model)
	}
	reply := repositories.ChatMessage{Role: repositories.AssistantRole, Content: replyText}

	s.mu.Lock()
	s.history = append(s.history, message, reply)
	s.mu.Unlock()

	return reply, nil
}

func (s *GeminiChatSession) History() ([]repositories.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repositories.ChatMessage(nil), s.history...), nil
}
