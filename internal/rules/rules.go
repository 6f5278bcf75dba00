package rules

import "errors"

// ErrIllegalMove is returned when the engine rejects a requested move.
// Session state must be left untouched by the caller in that case.
var ErrIllegalMove = errors.New("illegal move")

// Verdict is the engine's terminal judgement after a move.
type Verdict struct {
	Over   bool
	Winner string // "white" or "black"; empty when the game is drawn
	Method string // lowercased engine method: "checkmate", "stalemate", ...
}

// MoveResult describes one accepted move.
type MoveResult struct {
	UCI        string
	SAN        string
	FEN        string
	SideToMove string
	Verdict    Verdict
}

// Oracle validates moves and detects terminal conditions. The canonical
// position encoding is the UCI move history from the start position; FEN
// is derived for presentation only.
type Oracle interface {
	StartFEN() string
	Apply(history []string, from, to, promotion string) (*MoveResult, error)
}
