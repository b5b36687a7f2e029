// Package protocol defines the line protocol spoken between the server
// and its clients: the command verbs, the separators, the feature flags,
// and the coded errors reported back on rejected commands.
//
// A message is a single line of the form COMMAND~arg1~arg2; list-valued
// arguments join their elements with a comma.
package protocol

import "strings"

const (
	ArgSep  = "~"
	ElemSep = ","
)

// Client to server commands.
const (
	CmdConnect           = "CONNECT"
	CmdAddComputer       = "ADD_COMPUTER"
	CmdRemoveComputer    = "REMOVE_COMPUTER"
	CmdRequestGame       = "REQUEST_GAME"
	CmdPlayCard          = "PLAY_CARD"
	CmdDrawCard          = "DRAW_CARD"
	CmdSend              = "SEND"
	CmdRespondPlayerName = "RESPOND_PLAYERNAME"
	CmdRespondCardName   = "RESPOND_CARDNAME"
	CmdRespondIndex      = "RESPOND_INDEX"
	CmdRespondYesOrNo    = "RESPOND_YESORNO"
	CmdStopShuffle       = "STOP_SHUFFLE"
)

// Server to client messages.
const (
	MsgHello            = "HELLO"
	MsgPlayerList       = "PLAYER_LIST"
	MsgQueue            = "QUEUE"
	MsgNewGame          = "NEW_GAME"
	MsgCurrent          = "CURRENT"
	MsgShowHand         = "SHOW_HAND"
	MsgGameOver         = "GAME_OVER"
	MsgError            = "ERROR"
	MsgBroadcastMove    = "BROADCAST_MOVE"
	MsgPlayerOut        = "PLAYER_OUT"
	MsgMessage          = "MESSAGE"
	MsgAskForPlayerName = "ASK_FOR_PLAYERNAME"
	MsgAskForIndex      = "ASK_FOR_INDEX"
	MsgAskForYesOrNo    = "ASK_FOR_YESORNO"
	MsgAskStopShuffle   = "ASK_STOP_SHUFFLE"
	MsgAskForCardName   = "ASK_FOR_CARDNAME"
	MsgShowFirst3Cards  = "SHOW_FIRST_3_CARDS"
	MsgExplodingKitten  = "EXPLODING_KITTEN"
)

// Feature flags negotiated on CONNECT. The first client to connect fixes
// the flag set for the lobby; later clients must connect with a subset.
const (
	FlagChat   = "0"
	FlagLobby  = "3"
	FlagCombos = "4"
)

// ServerFlags is every flag this server implements, advertised in HELLO.
var ServerFlags = []string{FlagChat, FlagLobby, FlagCombos}

// Join assembles a wire line from a verb and its arguments.
func Join(verb string, args ...string) string {
	if len(args) == 0 {
		return verb
	}
	return verb + ArgSep + strings.Join(args, ArgSep)
}

// Split breaks a wire line into its verb and arguments. An empty line
// yields an empty verb.
func Split(line string) (verb string, args []string) {
	parts := strings.Split(strings.TrimSpace(line), ArgSep)
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}

// JoinElems joins a list-valued argument.
func JoinElems(elems []string) string {
	return strings.Join(elems, ElemSep)
}

// SplitElems splits a list-valued argument. An empty argument yields nil
// rather than a single empty element.
func SplitElems(arg string) []string {
	if arg == "" {
		return nil
	}
	return strings.Split(arg, ElemSep)
}
