package game

import "time"

// shuffleInterval is the pause between reshuffles of the ticker loop.
const shuffleInterval = 150 * time.Millisecond

// startShuffle raises the keep-shuffling flag and launches the ticker
// goroutine if one is not already running.
// Assumes lock is held by caller.
func (c *Coordinator) startShuffle() {
	c.keepShuffle = true
	if c.shuffling {
		return
	}
	c.shuffling = true
	go c.shuffleLoop()
}

// shuffleLoop reshuffles the draw pile until the flag drops. The flag is
// re-checked under the lock on every tick; it is never assumed to hold
// across the sleep, since StopShuffle and game-over lower it from under
// the coordinator's own lock.
func (c *Coordinator) shuffleLoop() {
	ticker := time.NewTicker(shuffleInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		if !c.keepShuffle {
			c.shuffling = false
			c.mu.Unlock()
			return
		}
		c.game.Deck.Shuffle()
		c.mu.Unlock()
	}
}
