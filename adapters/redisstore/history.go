package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// Config holds the Redis history store settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL is the conversation expiry, refreshed on every append.
	TTL time.Duration
	// MaxTurns caps the stored turns per conversation. Zero means unlimited.
	MaxTurns int
	// MaxTokens caps the approximate token total across stored turns.
	// Oldest turns are evicted first. Zero means unlimited.
	MaxTokens int
}

// HistoryStore persists conversation turns in Redis lists.
type HistoryStore struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// NewHistoryStore connects to Redis and verifies the connection.
func NewHistoryStore(ctx context.Context, config Config, logger *zap.Logger) (*HistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &HistoryStore{client: client, config: config, logger: logger}, nil
}

var _ repositories.HistoryStore = (*HistoryStore)(nil)

func conversationKey(sessionID string) string {
	return "conversation:" + sessionID
}

func (h *HistoryStore) AppendTurn(ctx context.Context, sessionID string, turn entities.ChatTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := conversationKey(sessionID)
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if h.config.MaxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-h.config.MaxTurns), -1)
	}
	pipe.Expire(ctx, key, h.config.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	if h.config.MaxTokens > 0 {
		if err := h.truncateByTokens(ctx, key); err != nil {
			h.logger.Warn("failed to truncate conversation by tokens",
				zap.String("sessionId", sessionID),
				zap.Error(err))
		}
	}
	return nil
}

// truncateByTokens evicts oldest turns until the approximate token total
// fits the budget. One token is counted per four characters of text.
func (h *HistoryStore) truncateByTokens(ctx context.Context, key string) error {
	raw, err := h.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}

	total := 0
	counts := make([]int, len(raw))
	for i, item := range raw {
		var turn entities.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			continue
		}
		counts[i] = (len(turn.UserText) + len(turn.AssistantText)) / 4
		total += counts[i]
	}

	evict := 0
	for evict < len(raw)-1 && total > h.config.MaxTokens {
		total -= counts[evict]
		evict++
	}
	if evict == 0 {
		return nil
	}
	return h.client.LTrim(ctx, key, int64(evict), -1).Err()
}

func (h *HistoryStore) Turns(ctx context.Context, sessionID string) ([]entities.ChatTurn, error) {
	raw, err := h.client.LRange(ctx, conversationKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	turns := make([]entities.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn entities.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			h.logger.Warn("skipping corrupt turn record",
				zap.String("sessionId", sessionID),
				zap.Error(err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (h *HistoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := h.client.Del(ctx, conversationKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (h *HistoryStore) Close() error {
	return h.client.Close()
}
