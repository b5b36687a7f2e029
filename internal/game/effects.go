package game

import (
	"explodingkittens/engine"
	"explodingkittens/internal/protocol"
)

// applyEffect runs the staged action's effect after polling settled with
// even parity. Combos dispatch on count; single cards on type. Effects
// that need more input open the matching dialog instead of finishing.
// Assumes lock is held by caller.
func (c *Coordinator) applyEffect(staged []engine.Card, by string) {
	// The ask lists the possible targets, everyone but the actor, so
	// clients can pick without tracking the roster.
	var opponents []string
	for _, name := range c.game.Names() {
		if name != by {
			opponents = append(opponents, name)
		}
	}
	roster := protocol.JoinElems(opponents)

	if len(staged) == 2 {
		c.mode = ModeAwaitCombo2Target
		c.stagedBy = by
		c.unicast(by, protocol.Join(protocol.MsgAskForPlayerName, roster))
		return
	}
	if len(staged) == 3 {
		c.mode = ModeAwaitCombo3Target
		c.stagedBy = by
		c.unicast(by, protocol.Join(protocol.MsgAskForPlayerName, roster))
		return
	}

	switch staged[0] {
	case engine.Skip:
		// Under an attack chain this serves one forced turn rather than
		// truly skipping; AdvanceTurn carries that rule.
		c.game.AdvanceTurn()
		c.announceTurn()
	case engine.Attack:
		c.game.ApplyAttack()
		c.announceTurn()
	case engine.Shuffle:
		c.game.Deck.Shuffle()
		c.startShuffle()
		c.shuffleStopper = c.game.Next().Name
		c.unicast(c.shuffleStopper, protocol.Join(protocol.MsgAskStopShuffle))
		c.announceTurn()
	case engine.SeeTheFuture:
		top := c.game.Deck.PeekTop(3)
		c.unicast(by, protocol.Join(protocol.MsgShowFirst3Cards, engine.CardNames(top, protocol.ElemSep)))
		c.announceTurn()
	case engine.Favor:
		c.mode = ModeAwaitFavorTarget
		c.stagedBy = by
		c.unicast(by, protocol.Join(protocol.MsgAskForPlayerName, roster))
	}
}
