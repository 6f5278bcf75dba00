package match

import "errors"

// Color identifies a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the session lifecycle state. Transitions only move forward:
// waiting → playing → finished. A cancelled session is removed, never
// marked finished.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Display tags for settled games. Payout is keyed only off the
// normalized win/draw axis (Result.Winner); the tag is for chat/UI.
const (
	TagWhiteWins     = "white_wins"
	TagBlackWins     = "black_wins"
	TagDraw          = "draw"
	TagWhiteResigned = "white_resigned"
	TagBlackResigned = "black_resigned"
	TagTimeoutWhite  = "timeout_white"
	TagTimeoutBlack  = "timeout_black"
	TagDisconnected  = "opponent_disconnected"
)

// Result is the settlement outcome of one session.
type Result struct {
	Tag    string
	Winner Color  // empty on draw
	Reason string // terminal method or "agreement"/"resignation"/...
}

// Participant is one seated player. The first participant is the
// creator and always plays white.
type Participant struct {
	Handle string
	Name   string
	Color  Color
}

// LastMove records the most recent accepted move for UI highlighting.
type LastMove struct {
	From string
	To   string
}

var (
	ErrNotFound      = errors.New("session not found")
	ErrFull          = errors.New("session already has two participants")
	ErrWagerMismatch = errors.New("wager does not match session")
	ErrWrongTurn     = errors.New("not this player's turn")
	ErrIllegalMove   = errors.New("illegal move")
	ErrNotPlaying    = errors.New("session is not playing")
	ErrNotWaiting    = errors.New("session is not waiting")
	ErrNotCreator    = errors.New("only the creator may cancel")
	ErrNotInGame     = errors.New("participant not in session")
	ErrClockRunning  = errors.New("flagged side still has time")
)

// Channel is the realtime transport as the core sees it: best-effort,
// fire-and-forget delivery. Nothing in this package awaits delivery.
type Channel interface {
	SendTo(handle, event string, payload any)
	BroadcastRoom(code, event string, payload any)
	BroadcastAll(event string, payload any)
	CloseRoom(code string)
}

// MoveOutcome reports an accepted move back to the caller. Terminal is
// non-nil when the move (or a clock already exhausted at move time)
// settled the session.
type MoveOutcome struct {
	SAN        string
	UCI        string
	FEN        string
	SideToMove Color
	Terminal   *Result
	TimedOut   bool // mover's clock was spent before the move; no move applied
}

// DrawReply distinguishes recording a fresh offer from accepting a
// pending one.
type DrawReply string

const (
	DrawOffered  DrawReply = "offered"
	DrawAccepted DrawReply = "accepted"
)
