// Package server owns the lobby and the transport: it accepts
// connections, runs the CONNECT handshake with feature-flag negotiation,
// and routes decoded commands into the game coordinator. The coordinator
// answers back through the broadcast and unicast callbacks wired in at
// game start.
package server

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"explodingkittens/engine"
	"explodingkittens/internal/config"
	"explodingkittens/internal/game"
	"explodingkittens/internal/protocol"
)

// maxLobby is the most named players the lobby admits; the game rules
// top out at five seats.
const maxLobby = 5

// Server accepts client connections and mediates between sessions and
// the running game. Its mutex guards the lobby only; the coordinator has
// its own lock, and no Server method calls into the coordinator while
// holding the lobby mutex.
type Server struct {
	cfg *config.Config
	log *logrus.Entry

	mu         sync.Mutex
	sessions   []*Session
	firstFlags []string
	chatActive bool
	combos     bool
	coord      *game.Coordinator

	// botName generates names for scripted opponents; seed feeds new
	// games. Both are swappable in tests.
	botName func() string
	seed    func() int64

	// spawnBot connects a scripted opponent to the given transport end.
	spawnBot func(name string, conn net.Conn)
}

// New builds a server around the given config.
func New(cfg *config.Config, log *logrus.Logger) *Server {
	return &Server{
		cfg: cfg,
		log: log.WithField("component", "server"),
		botName: func() string {
			return "Computer-" + uuid.NewString()[:8]
		},
		seed: func() int64 { return time.Now().UnixNano() },
	}
}

// SetBotSpawner installs the scripted-opponent factory. Kept separate
// from New so the server package does not import the bot package.
func (s *Server) SetBotSpawner(fn func(name string, conn net.Conn)) {
	s.spawnBot = fn
}

// ListenAndServe accepts TCP connections until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", ln.Addr().String()).Info("listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.Attach(conn)
	}
}

// Attach adopts a connection as a new session and starts its read loop.
// Used by the TCP accept loop, the WebSocket handler, and bot pipes.
func (s *Server) Attach(conn net.Conn) *Session {
	sess := newSession(s, conn)
	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
	go sess.run()
	return sess
}

// dispatch routes one decoded line from a session. Validation errors go
// back to the sender only; shared state is untouched on failure.
func (s *Server) dispatch(sess *Session, line string) {
	verb, args := protocol.Split(line)
	if err := s.route(sess, verb, args); err != nil {
		perr, ok := err.(*protocol.Error)
		if !ok {
			perr = protocol.Errf(protocol.CodeBadRequest, "%v", err)
		}
		sess.send(perr.Line())
		s.log.WithFields(logrus.Fields{
			"player": sess.name,
			"verb":   verb,
			"code":   perr.Code,
		}).Debug("command rejected")
	}
}

func (s *Server) route(sess *Session, verb string, args []string) error {
	switch verb {
	case protocol.CmdConnect:
		return s.handleConnect(sess, args)
	case protocol.CmdAddComputer:
		return s.handleAddComputer(sess)
	case protocol.CmdRemoveComputer:
		return s.handleRemoveComputer(sess)
	case protocol.CmdRequestGame:
		return s.handleRequestGame(sess, args)
	case protocol.CmdSend:
		return s.handleChat(sess, args)
	}

	// Everything else is a game command from a named player.
	if sess.name == "" {
		return protocol.Errf(protocol.CodeOutOfTurn, "connect first")
	}
	coord := s.coordinator()
	if coord == nil {
		return protocol.Errf(protocol.CodeOutOfTurn, "no game is running")
	}
	switch verb {
	case protocol.CmdPlayCard:
		return coord.PlayCard(sess.name, arg(args, 0))
	case protocol.CmdDrawCard:
		return coord.DrawCard(sess.name)
	case protocol.CmdRespondYesOrNo:
		return coord.RespondYesNo(sess.name, strings.EqualFold(arg(args, 0), "yes"))
	case protocol.CmdRespondIndex:
		return coord.RespondIndex(sess.name, arg(args, 0))
	case protocol.CmdRespondPlayerName:
		return coord.RespondPlayerName(sess.name, arg(args, 0))
	case protocol.CmdRespondCardName:
		return coord.RespondCardName(sess.name, arg(args, 0))
	case protocol.CmdStopShuffle:
		return coord.StopShuffle(sess.name)
	default:
		return protocol.Errf(protocol.CodeUnknownCommand, "unknown command %q", verb)
	}
}

// handleConnect runs the handshake. The first flagged client fixes the
// lobby's feature set; later flagged clients must connect with a subset.
// Scripted opponents connect without flags and skip the check.
func (s *Server) handleConnect(sess *Session, args []string) error {
	name := strings.TrimSpace(arg(args, 0))
	if name == "" {
		return protocol.Errf(protocol.CodeBadRequest, "a name is required")
	}

	s.mu.Lock()
	if sess.name != "" {
		s.mu.Unlock()
		return protocol.Errf(protocol.CodeBadRequest, "already connected as %s", sess.name)
	}
	for _, other := range s.sessions {
		if other.name == name {
			s.mu.Unlock()
			return protocol.Errf(protocol.CodeNameTaken, "name %s is taken", name)
		}
	}
	if s.namedCountLocked() >= maxLobby {
		s.mu.Unlock()
		return protocol.Errf(protocol.CodeLobbyFull, "the lobby is full")
	}

	if len(args) > 1 && args[1] != "" {
		flags := protocol.SplitElems(args[1])
		if s.firstFlags == nil {
			s.firstFlags = flags
			s.chatActive = contains(flags, protocol.FlagChat)
			s.combos = contains(flags, protocol.FlagCombos)
		} else {
			for _, f := range flags {
				if !contains(s.firstFlags, f) {
					s.mu.Unlock()
					return protocol.Errf(protocol.CodeFlagMismatch, "flags don't match the lobby")
				}
			}
		}
	}

	sess.name = name
	sess.log = sess.log.WithField("player", name)
	s.mu.Unlock()

	sess.send(protocol.Join(protocol.MsgHello, name, protocol.JoinElems(protocol.ServerFlags)))
	s.broadcastLobby()
	return nil
}

// handleAddComputer spawns a scripted opponent on an in-process pipe.
// It joins like any other client, driven by its own CONNECT.
func (s *Server) handleAddComputer(sess *Session) error {
	if s.spawnBot == nil {
		return protocol.Errf(protocol.CodeBadRequest, "computer players are not available")
	}
	s.mu.Lock()
	if s.namedCountLocked() >= maxLobby {
		s.mu.Unlock()
		return protocol.Errf(protocol.CodeLobbyFull, "the lobby is full")
	}
	name := s.botName()
	s.mu.Unlock()

	client, server := net.Pipe()
	botSess := s.Attach(server)
	botSess.isBot = true
	s.spawnBot(name, client)
	return nil
}

// handleRemoveComputer disconnects one scripted opponent.
func (s *Server) handleRemoveComputer(sess *Session) error {
	s.mu.Lock()
	var bot *Session
	for _, other := range s.sessions {
		if other.isBot {
			bot = other
			break
		}
	}
	s.mu.Unlock()
	if bot == nil {
		return protocol.Errf(protocol.CodeNoComputerPlayer, "no computer player is connected")
	}
	bot.close()
	return nil
}

// handleRequestGame starts a match with the first n connected players.
func (s *Server) handleRequestGame(sess *Session, args []string) error {
	if sess.name == "" {
		return protocol.Errf(protocol.CodeOutOfTurn, "connect first")
	}
	n, err := strconv.Atoi(arg(args, 0))
	if err != nil {
		return protocol.Errf(protocol.CodeBadRequest, "player count must be a number")
	}
	if n > maxLobby {
		return protocol.Errf(protocol.CodeBadRequest, "games hold at most %d players", maxLobby)
	}
	if n < 2 {
		return protocol.Errf(protocol.CodeNotEnoughPlayers, "a game needs at least 2 players")
	}

	s.mu.Lock()
	if s.coord != nil && !s.coord.GameOver() {
		s.mu.Unlock()
		return protocol.Errf(protocol.CodeOutOfTurn, "a game is already running")
	}
	names := s.namedPlayersLocked()
	if len(names) < n {
		s.mu.Unlock()
		return protocol.Errf(protocol.CodeNotEnoughPlayers, "only %d of %d players connected", len(names), n)
	}
	names = names[:n]

	g := engine.NewGame(names, s.seed())
	coord := game.NewCoordinator(g, s.combos, s.seed())
	coord.Broadcast = s.broadcast
	coord.Unicast = s.unicast
	s.coord = coord
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"game":    coord.ID,
		"players": names,
	}).Info("game starting")
	coord.Start()
	return nil
}

// handleChat relays a chat line to everyone but the sender, when the
// chat feature was negotiated.
func (s *Server) handleChat(sess *Session, args []string) error {
	if sess.name == "" {
		return protocol.Errf(protocol.CodeOutOfTurn, "connect first")
	}
	s.mu.Lock()
	active := s.chatActive
	targets := s.targetsLocked(sess)
	s.mu.Unlock()
	if !active {
		return nil
	}
	line := protocol.Join(protocol.MsgMessage, sess.name, arg(args, 0))
	for _, t := range targets {
		t.send(line)
	}
	return nil
}

// coordinator returns the running game, or nil.
func (s *Server) coordinator() *game.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coord == nil || s.coord.GameOver() {
		return nil
	}
	return s.coord
}

// broadcast sends a line to every named session. Used as the
// coordinator's Broadcast callback, so it must not call back into the
// coordinator.
func (s *Server) broadcast(line string) {
	s.mu.Lock()
	targets := s.targetsLocked(nil)
	s.mu.Unlock()
	for _, t := range targets {
		t.send(line)
	}
}

// unicast sends a line to one named player, silently skipping unknown or
// disconnected names.
func (s *Server) unicast(player, line string) {
	s.mu.Lock()
	var target *Session
	for _, sess := range s.sessions {
		if sess.name == player {
			target = sess
			break
		}
	}
	s.mu.Unlock()
	if target != nil {
		target.send(line)
	}
}

// broadcastLobby re-sends the player list and queue length to everyone.
func (s *Server) broadcastLobby() {
	s.mu.Lock()
	names := s.namedPlayersLocked()
	targets := s.targetsLocked(nil)
	s.mu.Unlock()
	list := protocol.Join(protocol.MsgPlayerList, protocol.JoinElems(names))
	queue := protocol.Join(protocol.MsgQueue, strconv.Itoa(len(names)))
	for _, t := range targets {
		t.send(list)
		t.send(queue)
	}
}

// drop detaches a dead session and republishes the lobby. A mid-game
// drop does not abort the match; the player's name stays in the game
// until elimination or victory.
func (s *Server) drop(sess *Session) {
	sess.close()
	s.mu.Lock()
	for i, other := range s.sessions {
		if other == sess {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if sess.name != "" {
		s.log.WithField("player", sess.name).Info("session dropped")
		s.broadcastLobby()
	}
}

// namedPlayersLocked lists connected players in join order.
// Assumes lock is held by caller.
func (s *Server) namedPlayersLocked() []string {
	var out []string
	for _, sess := range s.sessions {
		if sess.name != "" {
			out = append(out, sess.name)
		}
	}
	return out
}

// Assumes lock is held by caller.
func (s *Server) namedCountLocked() int {
	return len(s.namedPlayersLocked())
}

// targetsLocked snapshots the named sessions, minus the excluded one,
// so sends can happen off the lobby lock.
// Assumes lock is held by caller.
func (s *Server) targetsLocked(exclude *Session) []*Session {
	var out []*Session
	for _, sess := range s.sessions {
		if sess.name != "" && sess != exclude {
			out = append(out, sess)
		}
	}
	return out
}

func arg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
