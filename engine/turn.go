package engine

// Player is a named participant with an ordered hand. Hand order is only
// meaningful for index-addressed operations; cards of the same type are
// interchangeable.
type Player struct {
	Name string
	Hand []Card
}

// Add appends a card to the hand.
func (p *Player) Add(c Card) { p.Hand = append(p.Hand, c) }

// Has reports whether the hand contains a card of type t.
func (p *Player) Has(t CardType) bool { return p.Count(t) > 0 }

// Count returns how many cards of type t the hand holds.
func (p *Player) Count(t CardType) int {
	n := 0
	for _, c := range p.Hand {
		if c == t {
			n++
		}
	}
	return n
}

// Remove takes the first card of type t out of the hand. Returns false if
// the hand holds none.
func (p *Player) Remove(t CardType) bool {
	for i, c := range p.Hand {
		if c == t {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt takes the card at index i out of the hand.
func (p *Player) RemoveAt(i int) Card {
	c := p.Hand[i]
	p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	return c
}

// Game is the turn engine: the ordered player list, the current-turn
// pointer, the attack-stacking counter, and the deck. It carries no
// network state; one implementation serves any variant of the game.
type Game struct {
	Players []*Player
	Deck    *Deck

	current         int
	additionalTurns int
	attackOn        bool
}

// NewGame creates a game for the named players with an unshuffled base
// deck. Call Deal to distribute hands, or rig Players directly in tests.
func NewGame(names []string, seed int64) *Game {
	g := &Game{Deck: NewDeck(seed)}
	for _, n := range names {
		g.Players = append(g.Players, &Player{Name: n})
	}
	return g
}

// Deal shuffles the base pile, gives every player one Defuse and seven
// drawn cards, then completes the draw pile for the player count.
func (g *Game) Deal() {
	g.Deck.Shuffle()
	for _, p := range g.Players {
		p.Add(Defuse)
		for i := 0; i < 7; i++ {
			c, err := g.Deck.Draw()
			if err != nil {
				// Base composition always covers 5 players * 7 cards.
				panic(err)
			}
			p.Add(c)
		}
	}
	g.Deck.SetUp(len(g.Players))
}

// Current returns the player whose turn it is.
func (g *Game) Current() *Player { return g.Players[g.current] }

// CurrentIndex returns the current-turn pointer.
func (g *Game) CurrentIndex() int { return g.current }

// NextIndex returns the index of the player after the current one.
func (g *Game) NextIndex() int {
	return (g.current + 1) % len(g.Players)
}

// Next returns the player after the current one in turn order.
func (g *Game) Next() *Player { return g.Players[g.NextIndex()] }

// AttackOn reports whether an attack chain is being served.
func (g *Game) AttackOn() bool { return g.attackOn }

// ForcedTurns returns the number of extra turns still owed from stacked
// Attack cards.
func (g *Game) ForcedTurns() int { return g.additionalTurns }

// AdvanceTurn moves the pointer to the next player. While an attack chain
// is active and forced turns remain, the pointer snaps back so the
// attacked player serves every owed turn before play passes on; once the
// last owed turn has been served the chain flag clears.
func (g *Game) AdvanceTurn() {
	g.current = g.NextIndex()
	if !g.attackOn {
		return
	}
	if g.additionalTurns > 0 {
		g.keepTurn()
		g.additionalTurns--
	} else {
		g.attackOn = false
	}
}

// keepTurn reverts the pointer to the player that just "ended" their turn.
func (g *Game) keepTurn() {
	if g.current == 0 {
		g.current = len(g.Players) - 1
	} else {
		g.current--
	}
}

// ApplyAttack starts or extends an attack chain and hands the turn to the
// next player. The first Attack makes the target owe one extra turn; each
// Attack played while a chain is active adds two more. Stacking is
// additive, never a reset.
func (g *Game) ApplyAttack() {
	if !g.attackOn {
		g.additionalTurns = 1
		g.attackOn = true
	} else {
		g.additionalTurns += 2
	}
	g.current = g.NextIndex()
}

// EliminateCurrent removes the current player from the game and returns
// them. The pointer clamps to 0 when the removed index was the last one;
// otherwise it stays, so the next player in order becomes current without
// an explicit advance.
func (g *Game) EliminateCurrent() *Player {
	out := g.Players[g.current]
	g.Players = append(g.Players[:g.current], g.Players[g.current+1:]...)
	if g.current >= len(g.Players) {
		g.current = 0
	}
	return out
}

// GameOver reports whether exactly one player remains.
func (g *Game) GameOver() bool { return len(g.Players) == 1 }

// PlayerByName finds a player by name, or nil.
func (g *Game) PlayerByName(name string) *Player {
	for _, p := range g.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Names returns the player names in turn order.
func (g *Game) Names() []string {
	out := make([]string, len(g.Players))
	for i, p := range g.Players {
		out[i] = p.Name
	}
	return out
}

// AnyoneHolds reports whether any player's hand contains a card of type t.
func (g *Game) AnyoneHolds(t CardType) bool {
	for _, p := range g.Players {
		if p.Has(t) {
			return true
		}
	}
	return false
}
