package archive

import (
	"context"
	"time"
)

// Record is the final transcript of one settled session.
type Record struct {
	GameID      string    `json:"game_id"`
	WhiteHandle string    `json:"white_handle"`
	WhiteName   string    `json:"white_name"`
	BlackHandle string    `json:"black_handle"`
	BlackName   string    `json:"black_name"`
	Wager       int64     `json:"wager"`
	Result      string    `json:"result"` // display tag
	Reason      string    `json:"reason,omitempty"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// Recorder persists settled matches. Implementations must tolerate
// repeated saves of the same game id.
type Recorder interface {
	SaveResult(ctx context.Context, rec *Record) error
	Close() error
}

// Browser lists archived games by participant, most recently ended
// first. Both real backends implement it; Nop does not.
type Browser interface {
	RecentByPlayer(ctx context.Context, handle string, limit int) ([]*Record, error)
}

// Nop discards records; used when no archive backend is configured.
type Nop struct{}

func (Nop) SaveResult(context.Context, *Record) error { return nil }
func (Nop) Close() error                              { return nil }
