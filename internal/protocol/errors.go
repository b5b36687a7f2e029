package protocol

import "fmt"

// Wire error codes. A rejected command is answered with
// ERROR~code~description sent to the offending client only.
const (
	CodeUnknownCommand   = "E01"
	CodeNameTaken        = "E02"
	CodeLobbyFull        = "E03"
	CodeServerFull       = "E04"
	CodeNotEnoughPlayers = "E05"
	CodeNoComputerPlayer = "E06"
	CodeCardNotInHand    = "E07"
	CodeOutOfTurn        = "E08"
	CodeFlagMismatch     = "E09"
	CodeBadRequest       = "E11"
	CodeTransport        = "E12"
	CodeUnknownElement   = "E13"
)

// Kind buckets error codes by handling policy.
type Kind int

const (
	// KindViolation covers commands sent out of turn, in the wrong
	// dialog, or not recognized at all.
	KindViolation Kind = iota
	// KindNotFound covers references to unknown players, cards, or
	// out-of-range indices.
	KindNotFound
	// KindConflict covers lobby state clashes: full lobby, taken name,
	// flag mismatch, missing computer player.
	KindConflict
	// KindTransport covers connection I/O failure. The only kind that
	// drops a session.
	KindTransport
)

// Error is a coded protocol error. Code selects the wire code and the
// handling kind; Desc is free text for the player.
type Error struct {
	Code string
	Desc string
}

func (e *Error) Error() string { return e.Code + ": " + e.Desc }

// Line renders the error as the wire message sent to the offender.
func (e *Error) Line() string { return Join(MsgError, e.Code, e.Desc) }

// Kind maps the error code to its handling bucket.
func (e *Error) Kind() Kind {
	switch e.Code {
	case CodeUnknownElement:
		return KindNotFound
	case CodeNameTaken, CodeLobbyFull, CodeServerFull,
		CodeNotEnoughPlayers, CodeNoComputerPlayer, CodeFlagMismatch:
		return KindConflict
	case CodeTransport:
		return KindTransport
	default:
		return KindViolation
	}
}

// Errf builds a coded error with a formatted description.
func Errf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Desc: fmt.Sprintf(format, args...)}
}
