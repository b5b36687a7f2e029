// Package engine implements the Exploding Kittens card game rules.
//
// The package holds the pure game model (cards, the two deck piles, and
// the turn engine) with no knowledge of the network protocol layered on
// top of it by internal/game and internal/server.
package engine

import "strings"

// CardType identifies one of the thirteen card kinds in the game.
// Cards have no identity beyond their type; two Skip cards are
// interchangeable.
type CardType uint8

const (
	ExplodingKitten CardType = iota
	Defuse
	Attack
	Favor
	Nope
	Skip
	Shuffle
	SeeTheFuture
	TacoCat
	HairyPotatoCat
	RainbowRalphingCat
	BeardCat
	Cattermelon

	numCardTypes
)

// Card is an immutable card value. The value is the type.
type Card = CardType

var cardNames = [numCardTypes]string{
	ExplodingKitten:    "Exploding Kitten",
	Defuse:             "Defuse",
	Attack:             "Attack",
	Favor:              "Favor",
	Nope:               "Nope",
	Skip:               "Skip",
	Shuffle:            "Shuffle",
	SeeTheFuture:       "See The Future",
	TacoCat:            "Taco Cat",
	HairyPotatoCat:     "Hairy Potato Cat",
	RainbowRalphingCat: "Rainbow Ralphing Cat",
	BeardCat:           "Beard Cat",
	Cattermelon:        "Cattermelon",
}

// String returns the canonical display name used on the wire.
func (c CardType) String() string {
	if c >= numCardTypes {
		return "Unknown"
	}
	return cardNames[c]
}

// IsCat reports whether the card is one of the five cat combo types.
func (c CardType) IsCat() bool {
	return c >= TacoCat && c <= Cattermelon
}

// ParseCard resolves a card name to its type, case-insensitively.
func ParseCard(name string) (CardType, bool) {
	trimmed := strings.TrimSpace(name)
	for t, n := range cardNames {
		if strings.EqualFold(trimmed, n) {
			return CardType(t), true
		}
	}
	return numCardTypes, false
}

// CardNames formats a hand for the wire, elements joined with sep.
func CardNames(cards []Card, sep string) string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.String()
	}
	return strings.Join(names, sep)
}
