package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

const chatKeyPrefix = "chat_history"

// chatCache keeps per-session conversation history as a JSON blob. History
// is bounded to maxTurns conversation turns (2 messages each); the oldest
// messages are evicted first.
type chatCache struct {
	store    *blobStore
	maxTurns int
}

// NewChatCache builds a ChatCache. redisClient may be nil for a pure
// in-memory cache; sweepInterval only matters for the in-memory backend.
func NewChatCache(redisClient *redis.Client, ttl, sweepInterval time.Duration, maxTurns int) services.ChatCache {
	store := newBlobStore(chatKeyPrefix, ttl, redisClient)
	store.startSweep(sweepInterval)
	return &chatCache{store: store, maxTurns: maxTurns}
}

func (c *chatCache) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	history, err := c.load(ctx, sessionID)
	if err != nil {
		return err
	}

	history = append(history, msg)

	maxMessages := c.maxTurns * 2
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	return c.store.set(ctx, sessionID, data)
}

func (c *chatCache) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	return c.load(ctx, sessionID)
}

func (c *chatCache) Clear(ctx context.Context, sessionID string) error {
	return c.store.del(ctx, sessionID)
}

func (c *chatCache) load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	data, ok, err := c.store.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.ChatMessage{}, nil
	}

	var history []models.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		// Corrupt blob - drop it rather than poison the session.
		_ = c.store.del(ctx, sessionID)
		return []models.ChatMessage{}, nil
	}
	return history, nil
}
