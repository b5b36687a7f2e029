package game

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explodingkittens/engine"
	"explodingkittens/internal/protocol"
)

// mockBroadcaster captures wire lines for assertions.
type mockBroadcaster struct {
	mu          sync.Mutex
	lines       []string
	playerLines map[string][]string
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerLines: make(map[string][]string)}
}

func (mb *mockBroadcaster) broadcastFn(line string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.lines = append(mb.lines, line)
}

func (mb *mockBroadcaster) unicastFn(player, line string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerLines[player] = append(mb.playerLines[player], line)
}

// lastWithVerb returns the most recent broadcast starting with the verb,
// or "".
func (mb *mockBroadcaster) lastWithVerb(verb string) string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(mb.lines[i], verb) {
			return mb.lines[i]
		}
	}
	return ""
}

// lastToPlayerWithVerb returns the most recent unicast to the player
// starting with the verb, or "".
func (mb *mockBroadcaster) lastToPlayerWithVerb(player, verb string) string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	lines := mb.playerLines[player]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], verb) {
			return lines[i]
		}
	}
	return ""
}

// setupTestMatch builds a started coordinator over an undealt game so
// tests can rig hands and the deck directly.
func setupTestMatch(specialCombos bool, names ...string) (*Coordinator, *engine.Game, *mockBroadcaster) {
	g := engine.NewGame(names, 11)
	c := NewCoordinator(g, specialCombos, 11)
	mb := newMockBroadcaster()
	c.Broadcast = mb.broadcastFn
	c.Unicast = mb.unicastFn
	c.started = true
	return c, g, mb
}

func TestSkipResolvesImmediatelyWithoutNopeHolders(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip}
	g.Players[1].Hand = []engine.Card{engine.Attack}

	require.NoError(t, c.PlayCard("p1", "Skip"))

	assert.Equal(t, "CURRENT~p2", mb.lastWithVerb(protocol.MsgCurrent))
	assert.Empty(t, g.Players[0].Hand)
	top, ok := g.Deck.TopDiscard()
	require.True(t, ok)
	assert.Equal(t, engine.Skip, top)
	assert.Equal(t, ModeIdle, c.mode)
}

func TestSingleNopeCancelsAction(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip}
	g.Players[1].Hand = []engine.Card{engine.Nope}

	require.NoError(t, c.PlayCard("p1", "Skip"))
	assert.Equal(t, ModePolling, c.mode)
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p2", protocol.MsgAskForYesOrNo))

	require.NoError(t, c.RespondYesNo("p2", true))

	// p1 holds no Nope, so the chain settles canceled: still p1's turn.
	assert.Equal(t, ModeIdle, c.mode)
	assert.Equal(t, "p1", g.Current().Name)
	assert.Equal(t, "CURRENT~p1", mb.lastWithVerb(protocol.MsgCurrent))
	// The Skip stays discarded even though it never took effect.
	assert.Empty(t, g.Players[0].Hand)
}

func TestDoubleNopeRestoresAction(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip, engine.Nope}
	g.Players[1].Hand = []engine.Card{engine.Nope}

	require.NoError(t, c.PlayCard("p1", "Skip"))
	require.NoError(t, c.RespondYesNo("p2", true))

	// p2's Nope made p1 eligible to counter.
	assert.Equal(t, ModePolling, c.mode)
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p1", protocol.MsgAskForYesOrNo))

	require.NoError(t, c.RespondYesNo("p1", true))

	// Even parity: the Skip applies after all.
	assert.Equal(t, ModeIdle, c.mode)
	assert.Equal(t, "p2", g.Current().Name)
}

func TestRespondNo_AfterResolutionRejected(t *testing.T) {
	c, g, _ := setupTestMatch(false, "p1", "p2", "p3")
	g.Players[0].Hand = []engine.Card{engine.Skip}
	g.Players[1].Hand = []engine.Card{engine.Nope}
	g.Players[2].Hand = []engine.Card{engine.Nope}

	require.NoError(t, c.PlayCard("p1", "Skip"))
	require.NoError(t, c.RespondYesNo("p2", false))
	require.NoError(t, c.RespondYesNo("p3", false))
	require.Equal(t, ModeIdle, c.mode)

	// A straggler answer to the already-settled poll must bounce rather
	// than re-resolve the action.
	err := c.RespondYesNo("p2", false)
	require.Error(t, err)
	assert.Equal(t, protocol.CodeOutOfTurn, err.(*protocol.Error).Code)
	assert.Equal(t, "p2", g.Current().Name)
}

func TestDeclineOnlySettlesPoll(t *testing.T) {
	c, g, _ := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Attack}
	g.Players[1].Hand = []engine.Card{engine.Nope}

	require.NoError(t, c.PlayCard("p1", "Attack"))
	require.NoError(t, c.RespondYesNo("p2", false))

	assert.Equal(t, "p2", g.Current().Name)
	assert.Equal(t, 1, g.ForcedTurns())
}

func TestAttackThenDrawServesForcedTurn(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2", "p3")
	g.Players[0].Hand = []engine.Card{engine.Attack}

	require.NoError(t, c.PlayCard("p1", "Attack"))
	assert.Equal(t, "p2", g.Current().Name)
	assert.Equal(t, 1, g.ForcedTurns())

	// The base pile holds no kittens, so this draw is safe.
	require.NoError(t, c.DrawCard("p2"))
	assert.Equal(t, "p2", g.Current().Name)
	assert.Equal(t, 0, g.ForcedTurns())
	assert.True(t, g.AttackOn())
	assert.Equal(t, "CURRENT~p2", mb.lastWithVerb(protocol.MsgCurrent))

	require.NoError(t, c.DrawCard("p2"))
	assert.Equal(t, "p3", g.Current().Name)
	assert.False(t, g.AttackOn())
}

func TestCombo2StealsRandomCard(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.TacoCat, engine.TacoCat}
	g.Players[1].Hand = []engine.Card{engine.Attack, engine.Shuffle}

	require.NoError(t, c.PlayCard("p1", "Taco Cat,Taco Cat"))
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p1", protocol.MsgAskForPlayerName))

	require.NoError(t, c.RespondPlayerName("p1", "p2"))

	assert.Len(t, g.Players[0].Hand, 1)
	assert.Len(t, g.Players[1].Hand, 1)
	stolen := g.Players[0].Hand[0]
	assert.True(t, stolen == engine.Attack || stolen == engine.Shuffle)
	assert.Equal(t, ModeIdle, c.mode)
}

func TestCombo3MissResolvesWithoutTransfer(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.BeardCat, engine.BeardCat, engine.BeardCat}
	g.Players[1].Hand = []engine.Card{engine.Shuffle}

	require.NoError(t, c.PlayCard("p1", "Beard Cat,Beard Cat,Beard Cat"))
	require.NoError(t, c.RespondPlayerName("p1", "p2"))
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p1", protocol.MsgAskForCardName))

	require.NoError(t, c.RespondCardName("p1", "Skip"))

	assert.Empty(t, g.Players[0].Hand)
	assert.Len(t, g.Players[1].Hand, 1)
	assert.Equal(t, ModeIdle, c.mode)
}

func TestFavorTargetGivesChosenCard(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Favor}
	g.Players[1].Hand = []engine.Card{engine.Skip, engine.Attack}

	require.NoError(t, c.PlayCard("p1", "Favor"))
	require.NoError(t, c.RespondPlayerName("p1", "p2"))
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p2", protocol.MsgAskForCardName))

	// Only the target may pick the card to give.
	err := c.RespondCardName("p1", "Skip")
	require.Error(t, err)

	require.NoError(t, c.RespondCardName("p2", "Skip"))
	assert.Equal(t, []engine.Card{engine.Favor, engine.Skip}, g.Players[0].Hand)
	assert.Equal(t, []engine.Card{engine.Attack}, g.Players[1].Hand)
}

func TestDefuseReinsertsKittenAtChosenDepth(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Defuse}
	g.Deck.InsertAt(0, engine.ExplodingKitten)

	require.NoError(t, c.DrawCard("p1"))
	assert.Equal(t, "EXPLODING_KITTEN~p1", mb.lastWithVerb(protocol.MsgExplodingKitten))
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p1", protocol.MsgAskForIndex))
	assert.Equal(t, ModeAwaitDefuseIndex, c.mode)

	require.NoError(t, c.RespondIndex("p1", "3"))

	got, ok := g.Deck.CardFromTop(3)
	require.True(t, ok)
	assert.Equal(t, engine.ExplodingKitten, got)
	assert.Empty(t, g.Players[0].Hand)
	assert.Equal(t, "p2", g.Current().Name)
}

func TestMalformedDefuseIndexReprompts(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Defuse}
	g.Deck.InsertAt(0, engine.ExplodingKitten)
	require.NoError(t, c.DrawCard("p1"))

	err := c.RespondIndex("p1", "three")
	require.Error(t, err)
	assert.Equal(t, ModeAwaitDefuseIndex, c.mode)
	asks := mb.playerLines["p1"]
	assert.GreaterOrEqual(t, len(asks), 2, "expected a second ASK_FOR_INDEX prompt")
}

func TestExplosionWithoutDefuseEliminates(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2", "p3")
	g.Players[0].Hand = []engine.Card{engine.Skip}
	g.Deck.InsertAt(0, engine.ExplodingKitten)

	require.NoError(t, c.DrawCard("p1"))

	assert.Equal(t, "PLAYER_OUT~p1", mb.lastWithVerb(protocol.MsgPlayerOut))
	assert.Len(t, g.Players, 2)
	assert.Equal(t, "p2", g.Current().Name)
	assert.Nil(t, g.PlayerByName("p1"))
}

func TestLastEliminationEndsGame(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = nil
	g.Deck.InsertAt(0, engine.ExplodingKitten)

	require.NoError(t, c.DrawCard("p1"))

	assert.Equal(t, "GAME_OVER~p2", mb.lastWithVerb(protocol.MsgGameOver))
	assert.True(t, c.GameOver())
	require.Error(t, c.DrawCard("p2"))
}

func TestSeeTheFutureRevealsTopThree(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.SeeTheFuture}

	require.NoError(t, c.PlayCard("p1", "See The Future"))

	want := engine.CardNames(g.Deck.PeekTop(3), protocol.ElemSep)
	line := mb.lastToPlayerWithVerb("p1", protocol.MsgShowFirst3Cards)
	assert.Equal(t, protocol.Join(protocol.MsgShowFirst3Cards, want), line)
	assert.Empty(t, mb.playerLines["p2"])
	assert.Equal(t, "p1", g.Current().Name)
}

func TestShuffleAsksNextPlayerToStop(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2", "p3")
	g.Players[0].Hand = []engine.Card{engine.Shuffle}

	require.NoError(t, c.PlayCard("p1", "Shuffle"))
	assert.NotEmpty(t, mb.lastToPlayerWithVerb("p2", protocol.MsgAskStopShuffle))
	assert.Equal(t, "p1", g.Current().Name)

	err := c.StopShuffle("p3")
	require.Error(t, err)

	require.NoError(t, c.StopShuffle("p2"))
	c.mu.Lock()
	assert.False(t, c.keepShuffle)
	c.mu.Unlock()
}

func TestPlayValidation(t *testing.T) {
	c, g, _ := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{
		engine.Defuse, engine.TacoCat, engine.BeardCat, engine.Skip, engine.Skip,
	}
	g.Players[1].Hand = []engine.Card{engine.Skip}

	cases := []struct {
		name   string
		player string
		spec   string
		code   string
	}{
		{"out of turn", "p2", "Skip", protocol.CodeOutOfTurn},
		{"defuse not playable", "p1", "Defuse", protocol.CodeBadRequest},
		{"lone cat", "p1", "Taco Cat", protocol.CodeBadRequest},
		{"mixed combo", "p1", "Taco Cat,Beard Cat", protocol.CodeBadRequest},
		{"non-cat combo without flag", "p1", "Skip,Skip", protocol.CodeBadRequest},
		{"card not held", "p1", "Attack", protocol.CodeCardNotInHand},
		{"unknown card", "p1", "Laser Pointer", protocol.CodeUnknownElement},
		{"nope outside polling", "p1", "Nope", protocol.CodeOutOfTurn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.PlayCard(tc.player, tc.spec)
			require.Error(t, err)
			assert.Equal(t, tc.code, err.(*protocol.Error).Code)
		})
	}
	// Nothing above may have touched the game.
	assert.Len(t, g.Players[0].Hand, 5)
	assert.Equal(t, 0, g.Deck.DiscardSize())
}

func TestPlayResendsHandToPayer(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip, engine.Attack}
	g.Players[1].Hand = []engine.Card{engine.Shuffle}

	require.NoError(t, c.PlayCard("p1", "Skip"))

	// The hand re-send is the only sync mechanism the wire format has;
	// without it a client keeps replaying cards it already paid.
	assert.Equal(t, "SHOW_HAND~Attack", mb.lastToPlayerWithVerb("p1", protocol.MsgShowHand))
}

func TestNopePayerGetsHandUpdate(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip}
	g.Players[1].Hand = []engine.Card{engine.Nope, engine.Favor}

	require.NoError(t, c.PlayCard("p1", "Skip"))
	require.NoError(t, c.RespondYesNo("p2", true))

	assert.Equal(t, "SHOW_HAND~Favor", mb.lastToPlayerWithVerb("p2", protocol.MsgShowHand))
}

func TestTargetAskExcludesActor(t *testing.T) {
	c, g, mb := setupTestMatch(false, "p1", "p2", "p3")
	g.Players[0].Hand = []engine.Card{engine.Favor}

	require.NoError(t, c.PlayCard("p1", "Favor"))

	line := mb.lastToPlayerWithVerb("p1", protocol.MsgAskForPlayerName)
	assert.Equal(t, protocol.Join(protocol.MsgAskForPlayerName, "p2,p3"), line)
}

func TestSpecialCombosFlagAllowsActionCombos(t *testing.T) {
	c, g, _ := setupTestMatch(true, "p1", "p2")
	g.Players[0].Hand = []engine.Card{engine.Skip, engine.Skip}
	g.Players[1].Hand = []engine.Card{engine.Favor}

	require.NoError(t, c.PlayCard("p1", "Skip,Skip"))
	require.NoError(t, c.RespondPlayerName("p1", "p2"))
	assert.Equal(t, []engine.Card{engine.Favor}, g.Players[0].Hand)
}
