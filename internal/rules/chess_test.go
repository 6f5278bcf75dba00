package rules

import (
	"errors"
	"testing"
)

func TestApplyOpeningMove(t *testing.T) {
	o := NewOracle()
	res, err := o.Apply(nil, "e2", "e4", "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "e2e4" || res.SAN != "e4" {
		t.Fatalf("move = %q/%q, want e2e4/e4", res.UCI, res.SAN)
	}
	if res.SideToMove != "black" {
		t.Fatalf("side to move = %q, want black", res.SideToMove)
	}
	if res.Verdict.Over {
		t.Fatalf("opening move should not end the game")
	}
}

func TestApplyIllegalMove(t *testing.T) {
	o := NewOracle()
	if _, err := o.Apply(nil, "e2", "e5", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("e2e5: err = %v, want ErrIllegalMove", err)
	}
	// moving out of turn is illegal at the rules layer too
	if _, err := o.Apply(nil, "e7", "e5", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("e7e5 as white: err = %v, want ErrIllegalMove", err)
	}
	if _, err := o.Apply([]string{"bogus"}, "e2", "e4", ""); err == nil {
		t.Fatalf("expected error for corrupt history")
	}
}

func TestApplyCheckmateVerdict(t *testing.T) {
	o := NewOracle()
	history := []string{"f2f3", "e7e5", "g2g4"}
	res, err := o.Apply(history, "d8", "h4", "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Verdict.Over || res.Verdict.Winner != "black" {
		t.Fatalf("verdict = %+v, want black win", res.Verdict)
	}
	if res.Verdict.Method != "checkmate" {
		t.Fatalf("method = %q, want checkmate", res.Verdict.Method)
	}
	if res.SAN != "Qh4#" {
		t.Fatalf("SAN = %q, want Qh4#", res.SAN)
	}
}

func TestApplyPromotion(t *testing.T) {
	o := NewOracle()
	// marches the a-pawn through b5 and b7 to capture the a8 rook
	history := []string{"a2a4", "b7b5", "a4b5", "g8f6", "b5b6", "f6g8", "b6b7", "g8f6"}
	res, err := o.Apply(history, "b7", "a8", "q")
	if err != nil {
		t.Fatalf("Apply promotion: %v", err)
	}
	if res.UCI != "b7a8q" {
		t.Fatalf("UCI = %q, want b7a8q", res.UCI)
	}
}

func TestApplyIgnoresPromotionLetterOnNormalMove(t *testing.T) {
	o := NewOracle()
	res, err := o.Apply(nil, "e2", "e4", "q")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "e2e4" {
		t.Fatalf("UCI = %q, want e2e4", res.UCI)
	}
}

func TestStartFEN(t *testing.T) {
	o := NewOracle()
	if fen := o.StartFEN(); fen == "" {
		t.Fatalf("empty start FEN")
	}
}
