// Package game coordinates one running Exploding Kittens match over the
// wire protocol: it owns the engine state, serializes every client
// command behind one mutex, and runs the Nope-polling and sub-dialog
// state machine that sits between a played card and its effect.
package game

import (
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"explodingkittens/engine"
	"explodingkittens/internal/protocol"
)

// Mode selects which multi-step dialog the coordinator is in. At most
// one is active at a time; every command is validated against it.
type Mode int

const (
	// ModeIdle: no action in flight; the current player may play or draw.
	ModeIdle Mode = iota
	// ModePolling: an action is staged and Nope holders are being asked.
	ModePolling
	// ModeAwaitFavorTarget: the Favor player must name a target.
	ModeAwaitFavorTarget
	// ModeAwaitFavorCard: the Favor target must name the card they give.
	ModeAwaitFavorCard
	// ModeAwaitCombo2Target: the two-of-a-kind player must name a target.
	ModeAwaitCombo2Target
	// ModeAwaitCombo3Target: the three-of-a-kind player must name a target.
	ModeAwaitCombo3Target
	// ModeAwaitCombo3Card: the three-of-a-kind player must name a card.
	ModeAwaitCombo3Card
	// ModeAwaitDefuseIndex: the defusing player must choose a pile depth.
	ModeAwaitDefuseIndex
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePolling:
		return "polling"
	case ModeAwaitFavorTarget:
		return "await_favor_target"
	case ModeAwaitFavorCard:
		return "await_favor_card"
	case ModeAwaitCombo2Target:
		return "await_combo2_target"
	case ModeAwaitCombo3Target:
		return "await_combo3_target"
	case ModeAwaitCombo3Card:
		return "await_combo3_card"
	case ModeAwaitDefuseIndex:
		return "await_defuse_index"
	default:
		return "unknown"
	}
}

// Coordinator runs one match. All exported methods take the lock; every
// validation runs before any state mutation, so a rejected command leaves
// the game untouched. Outbound traffic goes through the two callbacks,
// called with the lock held; they must not call back in.
type Coordinator struct {
	ID uuid.UUID

	mu   sync.Mutex
	game *engine.Game
	rng  *rand.Rand

	specialCombos bool
	started       bool
	// over is atomic so the server can poll game-over status without
	// taking the coordinator lock while holding its own.
	over atomic.Bool

	// Action-resolution state. Valid while mode != ModeIdle; cleared as a
	// unit whenever the staged action resolves or a dialog completes.
	mode     Mode
	staged   []engine.Card
	stagedBy string
	canceled bool            // flips on each Nope; odd means no effect
	declined map[string]bool // players done answering for this chain
	exempt   string          // most recent actor; never polled

	favorTarget string
	comboTarget string

	// Reshuffle ticker state.
	keepShuffle    bool
	shuffling      bool
	shuffleStopper string

	actionIndex int

	// Broadcast sends a wire line to every session; Unicast to one
	// player's session.
	Broadcast func(line string)
	Unicast   func(player, line string)
}

// NewCoordinator wraps an engine game. The seed feeds the random steal
// in two-of-a-kind combos; specialCombos permits non-cat combos.
func NewCoordinator(g *engine.Game, specialCombos bool, seed int64) *Coordinator {
	id, _ := uuid.NewRandom()
	return &Coordinator{
		ID:            id,
		game:          g,
		rng:           rand.New(rand.NewSource(seed)),
		specialCombos: specialCombos,
		declined:      make(map[string]bool),
	}
}

// Start deals hands and announces the match: roster to everyone, each
// hand privately, then the first turn.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.game.Deal()
	c.logAction("", "game_start", map[string]interface{}{"players": c.game.Names()})

	c.broadcast(protocol.Join(protocol.MsgNewGame, protocol.JoinElems(c.game.Names())))
	for _, p := range c.game.Players {
		c.showHand(p)
	}
	c.announceTurn()
}

// PlayCard handles PLAY_CARD. cardSpec is one card name or a
// comma-separated combo of identical names. A single Nope is the only
// play accepted from a non-current player, and only while polling.
func (c *Coordinator) PlayCard(player, cardSpec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}

	cards, err := parseCardSpec(cardSpec)
	if err != nil {
		return err
	}

	if len(cards) == 1 && cards[0] == engine.Nope {
		return c.playNope(player)
	}

	if c.mode != ModeIdle {
		return protocol.Errf(protocol.CodeOutOfTurn, "an action is still resolving")
	}
	if c.game.Current().Name != player {
		return protocol.Errf(protocol.CodeOutOfTurn, "it is not your turn")
	}
	if err := c.validatePlay(player, cards); err != nil {
		return err
	}

	// Pay up front: the cards leave the hand now and stay discarded even
	// if the action is later noped.
	p := c.game.PlayerByName(player)
	for _, card := range cards {
		p.Remove(card)
		c.game.Deck.Discard(card)
	}
	c.logAction(player, "play_card", map[string]interface{}{"cards": engine.CardNames(cards, ",")})
	c.broadcast(protocol.Join(protocol.MsgBroadcastMove, player, engine.CardNames(cards, protocol.ElemSep)))
	c.showHand(p)

	c.mode = ModePolling
	c.staged = cards
	c.stagedBy = player
	c.canceled = false
	c.declined = make(map[string]bool)
	c.exempt = player
	c.poll()
	return nil
}

// validatePlay enforces card legality before anything is moved.
// Assumes lock is held by caller.
func (c *Coordinator) validatePlay(player string, cards []engine.Card) error {
	first := cards[0]
	for _, card := range cards[1:] {
		if card != first {
			return protocol.Errf(protocol.CodeBadRequest, "combo cards must all match")
		}
	}
	switch {
	case first == engine.Defuse || first == engine.ExplodingKitten:
		return protocol.Errf(protocol.CodeBadRequest, "%s cannot be played directly", first)
	case len(cards) > 3:
		return protocol.Errf(protocol.CodeBadRequest, "combos are 2 or 3 cards")
	case len(cards) == 1 && first.IsCat():
		return protocol.Errf(protocol.CodeBadRequest, "cat cards only play as a combo of 2 or 3")
	case len(cards) > 1 && !first.IsCat() && !c.specialCombos:
		return protocol.Errf(protocol.CodeBadRequest, "only cat cards may be combined")
	}
	p := c.game.PlayerByName(player)
	if p.Count(first) < len(cards) {
		return protocol.Errf(protocol.CodeCardNotInHand, "you do not hold %d x %s", len(cards), first)
	}
	return nil
}

// playNope stacks an interrupt onto the staged action: parity flips, the
// noper becomes the new exempt actor, and polling restarts so previously
// exempt players (including the original actor) may counter.
// Assumes lock is held by caller.
func (c *Coordinator) playNope(player string) error {
	if c.mode != ModePolling {
		return protocol.Errf(protocol.CodeOutOfTurn, "there is nothing to nope")
	}
	p := c.game.PlayerByName(player)
	if p == nil || !p.Has(engine.Nope) {
		return protocol.Errf(protocol.CodeCardNotInHand, "you do not hold a Nope")
	}
	p.Remove(engine.Nope)
	c.game.Deck.Discard(engine.Nope)

	c.canceled = !c.canceled
	c.declined[player] = true
	c.exempt = player
	c.logAction(player, "play_nope", map[string]interface{}{"canceled": c.canceled})
	c.broadcast(protocol.Join(protocol.MsgBroadcastMove, player, engine.Nope.String()))
	c.showHand(p)

	c.poll()
	return nil
}

// RespondYesNo handles RESPOND_YESORNO during polling: yes plays a Nope,
// no records a decline. A response arriving after the action already
// resolved is rejected, not replayed.
func (c *Coordinator) RespondYesNo(player string, yes bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if c.mode != ModePolling {
		return protocol.Errf(protocol.CodeOutOfTurn, "no action is awaiting your answer")
	}
	if yes {
		return c.playNope(player)
	}
	c.declined[player] = true
	c.poll()
	return nil
}

// poll asks every eligible Nope holder, or resolves the staged action
// when nobody is left to ask.
// Assumes lock is held by caller.
func (c *Coordinator) poll() {
	eligible := c.eligibleNopers()
	if len(eligible) == 0 {
		c.resolve()
		return
	}
	for _, name := range eligible {
		c.unicast(name, protocol.Join(protocol.MsgAskForYesOrNo, c.stagedBy, engine.CardNames(c.staged, protocol.ElemSep)))
	}
}

// eligibleNopers returns the players still able to interrupt: they hold
// a Nope, are not the most recent actor, and have not declined or acted
// earlier in this chain.
// Assumes lock is held by caller.
func (c *Coordinator) eligibleNopers() []string {
	var out []string
	for _, p := range c.game.Players {
		if p.Name == c.exempt || c.declined[p.Name] || !p.Has(engine.Nope) {
			continue
		}
		out = append(out, p.Name)
	}
	return out
}

// resolve settles the staged action exactly once: even Nope parity
// applies the card effect, odd parity drops it. Either way the polling
// state is gone afterward, so late responses find nothing to act on.
// Assumes lock is held by caller.
func (c *Coordinator) resolve() {
	staged, by, canceled := c.staged, c.stagedBy, c.canceled
	c.mode = ModeIdle
	c.staged = nil
	c.canceled = false
	c.declined = make(map[string]bool)
	c.exempt = ""

	if canceled {
		c.logAction(by, "action_noped", map[string]interface{}{"cards": engine.CardNames(staged, ",")})
		c.broadcast(protocol.Join(protocol.MsgMessage, "server", by+"'s "+engine.CardNames(staged, protocol.ElemSep)+" was noped"))
		c.announceTurn()
		return
	}
	c.applyEffect(staged, by)
}

// RespondPlayerName handles RESPOND_PLAYERNAME for the three dialogs
// that need a target. Only the player who staged the action may answer.
func (c *Coordinator) RespondPlayerName(player, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	switch c.mode {
	case ModeAwaitFavorTarget, ModeAwaitCombo2Target, ModeAwaitCombo3Target:
	default:
		return protocol.Errf(protocol.CodeOutOfTurn, "no target is being chosen")
	}
	if player != c.stagedBy {
		return protocol.Errf(protocol.CodeOutOfTurn, "only %s may choose the target", c.stagedBy)
	}
	t := c.game.PlayerByName(target)
	if t == nil || target == player {
		return protocol.Errf(protocol.CodeUnknownElement, "no opponent named %s", target)
	}

	switch c.mode {
	case ModeAwaitFavorTarget:
		if len(t.Hand) == 0 {
			// Nothing to give; the Favor still resolves.
			c.logAction(player, "favor_empty", map[string]interface{}{"target": target})
			c.finishDialog()
			return nil
		}
		c.favorTarget = target
		c.mode = ModeAwaitFavorCard
		c.unicast(target, protocol.Join(protocol.MsgAskForCardName, player))
	case ModeAwaitCombo2Target:
		c.stealRandom(player, t)
		c.finishDialog()
	case ModeAwaitCombo3Target:
		c.comboTarget = target
		c.mode = ModeAwaitCombo3Card
		c.unicast(player, protocol.Join(protocol.MsgAskForCardName, target))
	}
	return nil
}

// RespondCardName handles RESPOND_CARDNAME: the Favor target naming the
// card they hand over, or the three-of-a-kind player naming their demand.
func (c *Coordinator) RespondCardName(player, cardName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	card, ok := engine.ParseCard(cardName)
	if !ok {
		return protocol.Errf(protocol.CodeUnknownElement, "unknown card %q", cardName)
	}

	switch c.mode {
	case ModeAwaitFavorCard:
		if player != c.favorTarget {
			return protocol.Errf(protocol.CodeOutOfTurn, "only %s may choose the card", c.favorTarget)
		}
		giver := c.game.PlayerByName(player)
		if !giver.Has(card) {
			return protocol.Errf(protocol.CodeCardNotInHand, "you do not hold a %s", card)
		}
		c.transfer(giver, c.game.PlayerByName(c.stagedBy), card)
		c.logAction(player, "favor_give", map[string]interface{}{"to": c.stagedBy, "card": card.String()})
		c.finishDialog()
	case ModeAwaitCombo3Card:
		if player != c.stagedBy {
			return protocol.Errf(protocol.CodeOutOfTurn, "only %s may name a card", c.stagedBy)
		}
		target := c.game.PlayerByName(c.comboTarget)
		if target != nil && target.Has(card) {
			c.transfer(target, c.game.PlayerByName(player), card)
			c.logAction(player, "combo3_steal", map[string]interface{}{"from": c.comboTarget, "card": card.String()})
		} else {
			// Asking for a card the target lacks is a legal miss.
			c.logAction(player, "combo3_miss", map[string]interface{}{"from": c.comboTarget, "card": card.String()})
			c.broadcast(protocol.Join(protocol.MsgMessage, "server", c.comboTarget+" does not hold a "+card.String()))
		}
		c.finishDialog()
	default:
		return protocol.Errf(protocol.CodeOutOfTurn, "no card is being chosen")
	}
	return nil
}

// RespondIndex handles RESPOND_INDEX during the defuse dialog. The value
// is the depth from the top of the draw pile; out-of-range values clamp
// and malformed input re-prompts instead of aborting the dialog.
func (c *Coordinator) RespondIndex(player, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if c.mode != ModeAwaitDefuseIndex {
		return protocol.Errf(protocol.CodeOutOfTurn, "no index is being chosen")
	}
	cur := c.game.Current()
	if cur.Name != player {
		return protocol.Errf(protocol.CodeOutOfTurn, "only %s may choose the index", cur.Name)
	}
	idx, err := strconv.Atoi(value)
	if err != nil {
		c.unicast(player, protocol.Join(protocol.MsgAskForIndex, strconv.Itoa(c.game.Deck.DrawSize())))
		return protocol.Errf(protocol.CodeBadRequest, "index must be a number")
	}

	cur.Remove(engine.Defuse)
	c.game.Deck.Discard(engine.Defuse)
	cur.Remove(engine.ExplodingKitten)
	c.game.Deck.InsertAt(idx, engine.ExplodingKitten)
	c.logAction(player, "defuse", map[string]interface{}{"index": idx})
	c.broadcast(protocol.Join(protocol.MsgBroadcastMove, player, engine.Defuse.String()))

	c.mode = ModeIdle
	c.showHand(cur)
	c.game.AdvanceTurn()
	c.announceTurn()
	return nil
}

// DrawCard handles DRAW_CARD, which ends the current player's turn.
func (c *Coordinator) DrawCard(player string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if c.mode != ModeIdle {
		return protocol.Errf(protocol.CodeOutOfTurn, "an action is still resolving")
	}
	cur := c.game.Current()
	if cur.Name != player {
		return protocol.Errf(protocol.CodeOutOfTurn, "it is not your turn")
	}

	card, err := c.game.Deck.Draw()
	if err != nil {
		return protocol.Errf(protocol.CodeBadRequest, "the draw pile is empty")
	}
	c.logAction(player, "draw_card", map[string]interface{}{"kitten": card == engine.ExplodingKitten})

	if card == engine.ExplodingKitten {
		c.broadcast(protocol.Join(protocol.MsgExplodingKitten, player))
		if cur.Has(engine.Defuse) {
			// The kitten sits in the hand until an index comes back.
			cur.Add(card)
			c.mode = ModeAwaitDefuseIndex
			c.unicast(player, protocol.Join(protocol.MsgAskForIndex, strconv.Itoa(c.game.Deck.DrawSize())))
			return nil
		}
		c.eliminate(cur, card)
		return nil
	}

	cur.Add(card)
	c.broadcast(protocol.Join(protocol.MsgBroadcastMove, player, protocol.CmdDrawCard))
	c.showHand(cur)
	c.game.AdvanceTurn()
	c.announceTurn()
	return nil
}

// eliminate removes the exploded player. Their hand and the kitten go to
// the discard pile so the game's card multiset stays intact.
// Assumes lock is held by caller.
func (c *Coordinator) eliminate(p *engine.Player, kitten engine.Card) {
	for _, card := range p.Hand {
		c.game.Deck.Discard(card)
	}
	p.Hand = nil
	c.game.Deck.Discard(kitten)

	out := c.game.EliminateCurrent()
	c.logAction(out.Name, "player_out", nil)
	c.broadcast(protocol.Join(protocol.MsgPlayerOut, out.Name))

	if c.game.GameOver() {
		c.over.Store(true)
		c.keepShuffle = false
		winner := c.game.Current().Name
		c.logAction(winner, "game_over", nil)
		c.broadcast(protocol.Join(protocol.MsgGameOver, winner))
		return
	}
	c.announceTurn()
}

// StopShuffle handles STOP_SHUFFLE from the player who was asked.
func (c *Coordinator) StopShuffle(player string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if !c.keepShuffle || player != c.shuffleStopper {
		return protocol.Errf(protocol.CodeOutOfTurn, "you were not asked to stop the shuffle")
	}
	c.keepShuffle = false
	c.shuffleStopper = ""
	c.logAction(player, "stop_shuffle", nil)
	c.broadcast(protocol.Join(protocol.MsgMessage, "server", player+" stopped the shuffle"))
	return nil
}

// GameOver reports whether the match has finished. Safe to call from
// callers holding their own locks.
func (c *Coordinator) GameOver() bool {
	return c.over.Load()
}

// Names returns the remaining players in turn order.
func (c *Coordinator) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game.Names()
}

// finishDialog ends a sub-dialog: transient state clears and the current
// player is re-announced.
// Assumes lock is held by caller.
func (c *Coordinator) finishDialog() {
	c.mode = ModeIdle
	c.stagedBy = ""
	c.favorTarget = ""
	c.comboTarget = ""
	c.announceTurn()
}

// transfer moves the first card of the given type from one hand to
// another and re-sends both hands.
// Assumes lock is held by caller.
func (c *Coordinator) transfer(from, to *engine.Player, card engine.Card) {
	from.Remove(card)
	to.Add(card)
	c.showHand(from)
	c.showHand(to)
}

// stealRandom takes a uniformly random card from the target. An empty
// hand yields no transfer; the combo still resolves.
// Assumes lock is held by caller.
func (c *Coordinator) stealRandom(actor string, target *engine.Player) {
	if len(target.Hand) == 0 {
		c.logAction(actor, "combo2_empty", map[string]interface{}{"target": target.Name})
		c.broadcast(protocol.Join(protocol.MsgMessage, "server", target.Name+" has no cards to steal"))
		return
	}
	card := target.RemoveAt(c.rng.Intn(len(target.Hand)))
	c.game.PlayerByName(actor).Add(card)
	c.logAction(actor, "combo2_steal", map[string]interface{}{"target": target.Name})
	c.showHand(target)
	c.showHand(c.game.PlayerByName(actor))
}

// checkRunning rejects commands outside the started-and-not-over window.
// Assumes lock is held by caller.
func (c *Coordinator) checkRunning() error {
	if !c.started || c.over.Load() {
		return protocol.Errf(protocol.CodeOutOfTurn, "no game is running")
	}
	return nil
}

// announceTurn broadcasts whose turn it is.
// Assumes lock is held by caller.
func (c *Coordinator) announceTurn() {
	c.broadcast(protocol.Join(protocol.MsgCurrent, c.game.Current().Name))
}

// showHand sends a player their full hand.
// Assumes lock is held by caller.
func (c *Coordinator) showHand(p *engine.Player) {
	c.unicast(p.Name, protocol.Join(protocol.MsgShowHand, engine.CardNames(p.Hand, protocol.ElemSep)))
}

// Assumes lock is held by caller.
func (c *Coordinator) broadcast(line string) {
	if c.Broadcast != nil {
		c.Broadcast(line)
	}
}

// Assumes lock is held by caller.
func (c *Coordinator) unicast(player, line string) {
	if c.Unicast != nil {
		c.Unicast(player, line)
	}
}

// parseCardSpec resolves a comma-separated card list to types.
func parseCardSpec(spec string) ([]engine.Card, error) {
	names := protocol.SplitElems(spec)
	if len(names) == 0 {
		return nil, protocol.Errf(protocol.CodeBadRequest, "no card named")
	}
	cards := make([]engine.Card, len(names))
	for i, n := range names {
		card, ok := engine.ParseCard(n)
		if !ok {
			return nil, protocol.Errf(protocol.CodeUnknownElement, "unknown card %q", n)
		}
		cards[i] = card
	}
	return cards, nil
}
