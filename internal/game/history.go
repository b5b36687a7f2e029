package game

import (
	"context"
	"log"
	"time"

	"explodingkittens/internal/cache"
)

// logAction appends one entry to the match's Redis history feed. The
// publish happens off the lock on its own goroutine with a short
// timeout; a missing Redis client makes it a no-op.
// Assumes lock is held by caller.
func (c *Coordinator) logAction(actor, actionType string, payload map[string]interface{}) {
	c.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        c.ID,
		ActionIndex:   c.actionIndex,
		Actor:         actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}

	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cache.Rdb == nil {
			return
		}
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("Error: game %s: failed publishing action %d (%s) to Redis: %v", c.ID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}
