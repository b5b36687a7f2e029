// Package bot implements the scripted opponent: an ordinary protocol
// client that connects over any net.Conn and answers server prompts with
// fixed heuristics. It keeps no game state beyond its own hand and the
// last card an opponent played.
package bot

import (
	"bufio"
	"math/rand"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"explodingkittens/engine"
	"explodingkittens/internal/protocol"
)

// comboOrder is the preference order for cat combos.
var comboOrder = []engine.Card{
	engine.BeardCat, engine.Cattermelon, engine.RainbowRalphingCat,
	engine.HairyPotatoCat, engine.TacoCat,
}

// giveOrder is the preference order when forced to give a card away,
// least useful first.
var giveOrder = []engine.Card{
	engine.HairyPotatoCat, engine.Cattermelon, engine.BeardCat,
	engine.RainbowRalphingCat, engine.TacoCat, engine.Shuffle,
	engine.Favor, engine.SeeTheFuture, engine.Skip, engine.Nope,
	engine.Attack, engine.Defuse,
}

// Bot is one scripted opponent.
type Bot struct {
	name string
	conn net.Conn
	rng  *rand.Rand
	log  *logrus.Entry

	mu         sync.Mutex // guards writes
	hand       []engine.Card
	lastPlayed string
}

// New creates a bot for the given connection. The name comes from the
// server's generator, so the caller controls uniqueness.
func New(name string, conn net.Conn, seed int64, log *logrus.Logger) *Bot {
	return &Bot{
		name: name,
		conn: conn,
		rng:  rand.New(rand.NewSource(seed)),
		log:  log.WithField("bot", name),
	}
}

// Run connects and serves server prompts until the connection closes.
// Blocks; callers run it on its own goroutine.
func (b *Bot) Run() {
	b.send(protocol.Join(protocol.CmdConnect, b.name))

	scanner := bufio.NewScanner(b.conn)
	for scanner.Scan() {
		b.handle(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		b.log.WithError(err).Debug("bot connection closed")
	}
}

// Close drops the bot's connection, ending Run.
func (b *Bot) Close() {
	b.conn.Close()
}

func (b *Bot) send(line string) {
	if _, err := b.conn.Write([]byte(line + "\n")); err != nil {
		b.log.WithError(err).Debug("bot write failed")
	}
}

func (b *Bot) handle(line string) {
	verb, args := protocol.Split(line)
	switch verb {
	case protocol.MsgShowHand:
		b.setHand(arg(args, 0))
	case protocol.MsgBroadcastMove:
		if arg(args, 0) != b.name {
			played := protocol.SplitElems(arg(args, 1))
			if len(played) > 0 {
				b.lastPlayed = played[0]
			}
		}
	case protocol.MsgCurrent:
		if arg(args, 0) == b.name {
			b.takeTurn()
		}
	case protocol.MsgAskForYesOrNo:
		b.answerNopePoll()
	case protocol.MsgAskForIndex:
		// Bury the kitten at the bottom of the pile.
		b.send(protocol.Join(protocol.CmdRespondIndex, arg(args, 0)))
	case protocol.MsgAskStopShuffle:
		b.send(protocol.Join(protocol.CmdStopShuffle))
	case protocol.MsgAskForCardName:
		b.answerCardName()
	case protocol.MsgAskForPlayerName:
		b.pickOpponent(arg(args, 0))
	case protocol.MsgShowFirst3Cards:
		b.reactToPeek(arg(args, 0))
	case protocol.MsgGameOver:
		if arg(args, 0) == b.name {
			b.send(protocol.Join(protocol.CmdSend, "I won!"))
		}
	}
}

func (b *Bot) setHand(spec string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hand = nil
	for _, name := range protocol.SplitElems(spec) {
		if c, ok := engine.ParseCard(name); ok {
			b.hand = append(b.hand, c)
		}
	}
}

func (b *Bot) holds(c engine.Card) bool { return b.countOf(c) > 0 }

func (b *Bot) countOf(c engine.Card) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.hand {
		if h == c {
			n++
		}
	}
	return n
}

// takeTurn picks the move for the bot's turn: counter an Attack in kind
// when possible, otherwise fall through the standard preference list.
func (b *Bot) takeTurn() {
	if strings.EqualFold(b.lastPlayed, engine.Attack.String()) && b.holds(engine.Attack) {
		b.send(protocol.Join(protocol.CmdPlayCard, engine.Attack.String()))
		return
	}
	b.send(b.chooseMove())
}

// chooseMove walks the preference order: Attack, Favor, cat triples, cat
// pairs, See The Future, then a draw.
func (b *Bot) chooseMove() string {
	if b.holds(engine.Attack) {
		return protocol.Join(protocol.CmdPlayCard, engine.Attack.String())
	}
	if b.holds(engine.Favor) {
		return protocol.Join(protocol.CmdPlayCard, engine.Favor.String())
	}
	for _, want := range []int{3, 2} {
		for _, cat := range comboOrder {
			if b.countOf(cat) >= want {
				combo := make([]engine.Card, want)
				for i := range combo {
					combo[i] = cat
				}
				return protocol.Join(protocol.CmdPlayCard, engine.CardNames(combo, protocol.ElemSep))
			}
		}
	}
	if b.holds(engine.SeeTheFuture) {
		return protocol.Join(protocol.CmdPlayCard, engine.SeeTheFuture.String())
	}
	return protocol.Join(protocol.CmdDrawCard)
}

func (b *Bot) answerNopePoll() {
	answer := "NO"
	if b.holds(engine.Nope) {
		answer = "YES"
	}
	b.send(protocol.Join(protocol.CmdRespondYesOrNo, answer))
}

// answerCardName answers both card-name prompts: give the least useful
// card after a Favor, demand a Defuse after a three-of-a-kind.
func (b *Bot) answerCardName() {
	if strings.EqualFold(b.lastPlayed, engine.Favor.String()) {
		for _, c := range giveOrder {
			if b.holds(c) {
				b.send(protocol.Join(protocol.CmdRespondCardName, c.String()))
				return
			}
		}
	}
	b.send(protocol.Join(protocol.CmdRespondCardName, engine.Defuse.String()))
}

func (b *Bot) pickOpponent(roster string) {
	var others []string
	for _, name := range protocol.SplitElems(roster) {
		if name != b.name {
			others = append(others, name)
		}
	}
	if len(others) == 0 {
		return
	}
	b.send(protocol.Join(protocol.CmdRespondPlayerName, others[b.rng.Intn(len(others))]))
}

// reactToPeek dodges a visible kitten with a Skip or Shuffle when one is
// in hand.
func (b *Bot) reactToPeek(spec string) {
	top := protocol.SplitElems(spec)
	danger := false
	for _, name := range top {
		if c, ok := engine.ParseCard(name); ok && c == engine.ExplodingKitten {
			danger = true
			break
		}
	}
	if danger {
		if b.holds(engine.Skip) {
			b.send(protocol.Join(protocol.CmdPlayCard, engine.Skip.String()))
			return
		}
		if b.holds(engine.Shuffle) {
			b.send(protocol.Join(protocol.CmdPlayCard, engine.Shuffle.String()))
			return
		}
	}
	b.send(b.chooseMove())
}

func arg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i]
}
