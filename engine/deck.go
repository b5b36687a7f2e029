package engine

import (
	"errors"
	"math/rand"
)

// ErrEmptyPile is returned when drawing from an empty draw pile. Under the
// standard composition rules the pile cannot run out before the game ends,
// but the condition is checked rather than assumed.
var ErrEmptyPile = errors.New("draw pile is empty")

// Deck holds the two LIFO piles. The top of each pile is the last slice
// element. The multiset union of the draw pile, the discard pile, and all
// hands stays constant for the lifetime of a game; the discard pile is
// never recycled into the draw pile.
type Deck struct {
	draw    []Card
	discard []Card
	rng     *rand.Rand
}

// NewDeck builds the base draw pile: 5 Nope, 5 See The Future, and 4 of
// each remaining playable type. Exploding Kittens and Defuses are added
// later by SetUp, after hands have been dealt.
func NewDeck(seed int64) *Deck {
	d := &Deck{rng: rand.New(rand.NewSource(seed))}
	for i := 0; i < 5; i++ {
		d.draw = append(d.draw, Nope, SeeTheFuture)
	}
	for i := 0; i < 4; i++ {
		d.draw = append(d.draw,
			Attack, Favor, Shuffle, Skip,
			TacoCat, HairyPotatoCat, RainbowRalphingCat, BeardCat, Cattermelon)
	}
	return d
}

// SetUp completes the draw pile for a game of playerCount players:
// playerCount-1 Exploding Kittens, plus 2 Defuses for 2-4 players or 1 for
// 5, then a fresh shuffle. Counts outside 2-5 are rejected by the protocol
// layer before this is reached.
func (d *Deck) SetUp(playerCount int) {
	for i := 0; i < playerCount-1; i++ {
		d.draw = append(d.draw, ExplodingKitten)
	}
	switch playerCount {
	case 2, 3, 4:
		d.draw = append(d.draw, Defuse, Defuse)
	case 5:
		d.draw = append(d.draw, Defuse)
	}
	d.Shuffle()
}

// Shuffle applies a fresh uniform permutation to the draw pile.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.draw), func(i, j int) {
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	})
}

// Draw removes and returns the top card of the draw pile.
func (d *Deck) Draw() (Card, error) {
	if len(d.draw) == 0 {
		return numCardTypes, ErrEmptyPile
	}
	c := d.draw[len(d.draw)-1]
	d.draw = d.draw[:len(d.draw)-1]
	return c, nil
}

// Discard pushes a card onto the discard pile.
func (d *Deck) Discard(c Card) {
	d.discard = append(d.discard, c)
}

// InsertAt places a card fromTop positions below the top of the draw pile.
// 0 puts it on top, DrawSize() at the bottom; out-of-range input is
// clamped, not an error.
func (d *Deck) InsertAt(fromTop int, c Card) {
	if fromTop < 0 {
		fromTop = 0
	}
	if fromTop > len(d.draw) {
		fromTop = len(d.draw)
	}
	pos := len(d.draw) - fromTop
	d.draw = append(d.draw, numCardTypes)
	copy(d.draw[pos+1:], d.draw[pos:])
	d.draw[pos] = c
}

// PeekTop returns up to n cards from the top of the draw pile, top first,
// without removing them.
func (d *Deck) PeekTop(n int) []Card {
	if n > len(d.draw) {
		n = len(d.draw)
	}
	out := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.draw[len(d.draw)-1-i])
	}
	return out
}

// DrawSize returns the number of cards in the draw pile.
func (d *Deck) DrawSize() int { return len(d.draw) }

// DiscardSize returns the number of cards in the discard pile.
func (d *Deck) DiscardSize() int { return len(d.discard) }

// TopDiscard returns the most recently discarded card.
func (d *Deck) TopDiscard() (Card, bool) {
	if len(d.discard) == 0 {
		return numCardTypes, false
	}
	return d.discard[len(d.discard)-1], true
}

// CountInDraw returns how many cards of type t sit in the draw pile.
func (d *Deck) CountInDraw(t CardType) int {
	n := 0
	for _, c := range d.draw {
		if c == t {
			n++
		}
	}
	return n
}

// CardFromTop returns the card fromTop positions below the top of the
// draw pile.
func (d *Deck) CardFromTop(fromTop int) (Card, bool) {
	if fromTop < 0 || fromTop >= len(d.draw) {
		return numCardTypes, false
	}
	return d.draw[len(d.draw)-1-fromTop], true
}
