package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, white, black string, ended time.Time) *Record {
	return &Record{
		GameID:      id,
		WhiteHandle: white,
		WhiteName:   white,
		BlackHandle: black,
		BlackName:   black,
		Wager:       50,
		Result:      "white_wins",
		Reason:      "checkmate",
		MovesUCI:    []string{"e2e4", "e7e5"},
		MovesSAN:    []string{"e4", "e5"},
		StartedAt:   ended.Add(-time.Minute),
		EndedAt:     ended,
	}
}

func TestSaveAndRecentByPlayer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("G%d", i), "u1", fmt.Sprintf("opp%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveResult(ctx, rec); err != nil {
			t.Fatalf("SaveResult #%d: %v", i, err)
		}
	}

	recs, err := s.RecentByPlayer(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentByPlayer: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	// newest first
	if recs[0].GameID != "G2" || recs[1].GameID != "G1" {
		t.Fatalf("order = %s,%s, want G2,G1", recs[0].GameID, recs[1].GameID)
	}

	recs, err = s.RecentByPlayer(ctx, "opp1", 0)
	if err != nil {
		t.Fatalf("RecentByPlayer opp1: %v", err)
	}
	if len(recs) != 1 || recs[0].GameID != "G1" {
		t.Fatalf("opp1 games = %+v, want only G1", recs)
	}
}

func TestSaveResultIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("G1", "u1", "u2", time.Now().UTC().Truncate(time.Second))
	if err := s.SaveResult(ctx, rec); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveResult(ctx, rec); err != nil {
		t.Fatalf("second save: %v", err)
	}
	recs, err := s.RecentByPlayer(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("RecentByPlayer: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1 after repeated save", len(recs))
	}
}

func TestRecentByPlayerUnknownHandle(t *testing.T) {
	s := newTestStore(t)
	recs, err := s.RecentByPlayer(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("RecentByPlayer: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d, want 0", len(recs))
	}
}
