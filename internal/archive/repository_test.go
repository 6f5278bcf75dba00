package archive

import (
	"strings"
	"testing"
	"time"
)

func TestPGNResultMapping(t *testing.T) {
	cases := map[string]string{
		"white_wins":            "1-0",
		"black_resigned":        "1-0",
		"timeout_black":         "1-0",
		"black_wins":            "0-1",
		"white_resigned":        "0-1",
		"timeout_white":         "0-1",
		"draw":                  "1/2-1/2",
		"opponent_disconnected": "*",
	}
	for tag, want := range cases {
		if got := pgnResultOf(&Record{Result: tag}); got != want {
			t.Fatalf("pgnResultOf(%s) = %q, want %q", tag, got, want)
		}
	}
}

func TestBuildPGN(t *testing.T) {
	rec := &Record{
		GameID:    "G1",
		WhiteName: `Alice "the rook"`,
		BlackName: "Bob",
		Result:    "black_wins",
		Reason:    "checkmate",
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		EndedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	pgn := buildPGN(rec)

	if !strings.Contains(pgn, `[Date "2026.08.30"]`) {
		t.Fatalf("missing date header:\n%s", pgn)
	}
	if !strings.Contains(pgn, `[White "Alice 'the rook'"]`) {
		t.Fatalf("quote not sanitized:\n%s", pgn)
	}
	if !strings.Contains(pgn, `[Termination "checkmate"]`) {
		t.Fatalf("missing termination header:\n%s", pgn)
	}
	if !strings.Contains(pgn, "1. f3 e5 2. g4 Qh4# 0-1") {
		t.Fatalf("bad movetext:\n%s", pgn)
	}
}
