// Package cache publishes per-game action history to Redis. The history
// feed is an append-only list per game plus a pub/sub channel for live
// followers. Redis is optional; when no client is configured, publishing
// is a no-op at the call sites.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the shared Redis client. Nil when Redis is not configured;
// callers must check before publishing.
var Rdb *redis.Client

// Init connects the shared client to the given address. An empty address
// leaves Redis disabled.
func Init(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// GameActionRecord is one entry in a game's action history.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"gameId"`
	ActionIndex   int                    `json:"actionIndex"`
	Actor         string                 `json:"actor,omitempty"`
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"payload,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
}

func historyKey(gameID uuid.UUID) string {
	return "game:" + gameID.String() + ":actions"
}

// PublishGameAction appends the record to the game's history list and
// notifies subscribers on the matching channel.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	key := historyKey(rec.GameID)
	if err := Rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return Rdb.Publish(ctx, key, data).Err()
}
