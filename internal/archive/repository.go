package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository archives settled matches in Postgres, one row per game,
// upserted so a racing duplicate settlement cannot produce two rows.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts the final result of a settled session.
func (r *Repository) SaveResult(ctx context.Context, rec *Record) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}

	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	pgn := buildPGN(rec)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO wagered_games (
	    game_id, white_handle, white_name, black_handle, black_name,
	    wager, result, reason, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    white_handle=EXCLUDED.white_handle,
	    white_name=EXCLUDED.white_name,
	    black_handle=EXCLUDED.black_handle,
	    black_name=EXCLUDED.black_name,
	    wager=EXCLUDED.wager,
	    result=EXCLUDED.result,
	    reason=EXCLUDED.reason,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID,
		rec.WhiteHandle, rec.WhiteName,
		rec.BlackHandle, rec.BlackName,
		rec.Wager, rec.Result, rec.Reason,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

// RecentByPlayer lists a player's archived games, most recently ended
// first.
func (r *Repository) RecentByPlayer(ctx context.Context, handle string, limit int) ([]*Record, error) {
	if r == nil || r.db == nil || strings.TrimSpace(handle) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT game_id, white_handle, white_name, black_handle, black_name,
	        wager, result, reason, moves_uci, moves_san, started_at, ended_at
	      FROM wagered_games
	      WHERE white_handle = $1 OR black_handle = $1
	      ORDER BY ended_at DESC
	      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, handle, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var uciRaw, sanRaw string
		if err := rows.Scan(
			&rec.GameID,
			&rec.WhiteHandle, &rec.WhiteName,
			&rec.BlackHandle, &rec.BlackName,
			&rec.Wager, &rec.Result, &rec.Reason,
			&uciRaw, &sanRaw,
			&rec.StartedAt, &rec.EndedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(uciRaw), &rec.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves_uci for %s: %w", rec.GameID, err)
		}
		if err := json.Unmarshal([]byte(sanRaw), &rec.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san for %s: %w", rec.GameID, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func pgnResultOf(rec *Record) string {
	switch rec.Result {
	case "white_wins", "black_resigned", "timeout_black":
		return "1-0"
	case "black_wins", "white_resigned", "timeout_white":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		// opponent_disconnected carries no winner color in the tag
		return "*"
	}
}

func buildPGN(rec *Record) string {
	if rec == nil {
		return ""
	}
	pgnResult := pgnResultOf(rec)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Wagered match\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.BlackName)))
	if strings.TrimSpace(rec.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
