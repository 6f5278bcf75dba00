package wire

// GameCreated acknowledges a create request to the creator only.
type GameCreated struct {
	GameID      string `json:"gameId"`
	PlayerColor string `json:"playerColor"` // always "white"
	BetAmount   int64  `json:"betAmount"`
}

// GameStarted is sent point-to-point to each participant when the second
// player joins; PlayerColor differs per recipient.
type GameStarted struct {
	GameID       string `json:"gameId"`
	PlayerColor  string `json:"playerColor"`
	OpponentName string `json:"opponentName"`
	BetAmount    int64  `json:"betAmount"`
	TimeControls int    `json:"timeControls"`
	FEN          string `json:"fen"`
	SideToMove   string `json:"currentPlayer"`
}

// MoveMade is broadcast to the session after an accepted move.
type MoveMade struct {
	GameID     string `json:"gameId"`
	From       Coord  `json:"from"`
	To         Coord  `json:"to"`
	SAN        string `json:"san"`
	UCI        string `json:"uci"`
	FEN        string `json:"fen"`
	SideToMove string `json:"currentPlayer"`
	WhiteTime  int    `json:"whiteTime"` // remaining seconds
	BlackTime  int    `json:"blackTime"`
}

// DrawOffered notifies the opponent of a pending draw offer.
type DrawOffered struct {
	GameID string `json:"gameId"`
	By     string `json:"by"` // color that offered
}

// DrawDeclined notifies the offerer that the offer was declined.
type DrawDeclined struct {
	GameID string `json:"gameId"`
	By     string `json:"by"` // color that declined
}

// GameFinished carries the settlement. Result is a display tag
// (white_wins, black_resigned, timeout_white, opponent_disconnected,
// draw, ...); Reason is the terminal method where one exists
// (checkmate, stalemate, insufficient_material, ...). Balances maps
// participant handle to post-settlement balance.
type GameFinished struct {
	GameID   string           `json:"gameId"`
	Result   string           `json:"result"`
	Reason   string           `json:"reason,omitempty"`
	Balances map[string]int64 `json:"balances"`
}

// ChatMessage is one transcript line, player- or system-authored.
type ChatMessage struct {
	GameID string `json:"gameId"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	System bool   `json:"system,omitempty"`
}

// LobbyEntry is one waiting session in the lobby snapshot.
type LobbyEntry struct {
	GameID       string `json:"gameId"`
	Creator      string `json:"creator"`
	BetAmount    int64  `json:"betAmount"`
	TimeControls int    `json:"timeControls"`
	Players      int    `json:"players"` // occupancy, 0-2
}

// Lobby is the full waiting-session snapshot pushed on every registry
// mutation and on explicit request.
type Lobby struct {
	Games []LobbyEntry `json:"games"`
}

// PlayersOnline is broadcast on every connect/disconnect.
type PlayersOnline struct {
	Count int `json:"count"`
}

// PlayerDisconnected warns the remaining participant before a forced
// settlement tears the session down.
type PlayerDisconnected struct {
	GameID string `json:"gameId"`
}
