package wire

// CreateGameRequest opens a new waiting session. The creator plays white.
type CreateGameRequest struct {
	PlayerName   string `json:"playerName"`
	BetAmount    int64  `json:"betAmount"`
	TimeControls int    `json:"timeControls"` // seconds per side
}

// JoinGameRequest enters an existing waiting session as black. BetAmount
// must match the session's fixed wager.
type JoinGameRequest struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
	BetAmount  int64  `json:"betAmount"`
}

// MoveRequest plays one move. Promotion is a single piece letter ("q",
// "r", "b", "n") and is ignored unless the move is a promotion.
type MoveRequest struct {
	GameID    string `json:"gameId"`
	From      Coord  `json:"from"`
	To        Coord  `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// GameRef addresses a session for operations that need nothing else
// (draw offer/accept/decline, resign, cancel).
type GameRef struct {
	GameID string `json:"gameId"`
}

// TimeoutRequest reports that a side's clock reached zero.
type TimeoutRequest struct {
	GameID string `json:"gameId"`
	Player string `json:"player"` // "white" or "black"
}

// ChatRequest appends a chat line to the session transcript.
type ChatRequest struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}
