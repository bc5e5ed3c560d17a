package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"media-insight/internal/domain/model"
)

// HistoryCache keeps the recent turn window of a chat session so the hot
// path skips Postgres. Append invalidates; the next read repopulates.
type HistoryCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewHistoryCache(client RedisClient, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		client: client,
		ttl:    ttl,
	}
}

func historyKey(sessionID string) string {
	return "chat_history:" + sessionID
}

// Get returns (nil, nil) on a miss.
func (c *HistoryCache) Get(ctx context.Context, sessionID string) ([]model.ChatTurn, error) {
	data, err := c.client.Get(ctx, historyKey(sessionID))
	if err != nil {
		if errors.Is(err, Nil) {
			return nil, nil
		}
		return nil, err
	}
	var turns []model.ChatTurn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (c *HistoryCache) Put(ctx context.Context, sessionID string, turns []model.ChatTurn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, historyKey(sessionID), data, c.ttl)
}

func (c *HistoryCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, historyKey(sessionID))
}
