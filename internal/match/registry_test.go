package match

import (
	"errors"
	"testing"
	"time"

	"github.com/apostachess/server/internal/ledger"
	"github.com/apostachess/server/internal/rules"
)

// stallChannel parks every direct send until released, to model a stuck
// client socket.
type stallChannel struct {
	fakeChannel
	entered chan struct{}
	release chan struct{}
}

func (c *stallChannel) SendTo(handle, event string, payload any) {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.release
	c.fakeChannel.SendTo(handle, event, payload)
}

func TestCreateDebitsEscrow(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 1000)

	s, err := fx.reg.Create("u1", "Alice", 50, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(s.Code()) != 6 {
		t.Fatalf("code = %q, want 6 chars", s.Code())
	}
	if b := fx.led.Balance("u1"); b != 950 {
		t.Fatalf("balance = %d, want 950", b)
	}
	lobby := fx.reg.ListWaiting()
	if len(lobby) != 1 || lobby[0].GameID != s.Code() {
		t.Fatalf("lobby = %+v, want one entry for %s", lobby, s.Code())
	}
	if lobby[0].TimeControls != 300 {
		t.Fatalf("default clock = %d, want 300", lobby[0].TimeControls)
	}
}

func TestCreateUnderfundedLeavesNoOrphan(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 10)

	if _, err := fx.reg.Create("u1", "Alice", 50, 300); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Create: err = %v, want ErrInsufficientBalance", err)
	}
	if n := len(fx.reg.ListWaiting()); n != 0 {
		t.Fatalf("lobby entries = %d, want 0", n)
	}
	if b := fx.led.Balance("u1"); b != 10 {
		t.Fatalf("balance = %d, want untouched 10", b)
	}
}

func TestCreateRejectsSubMinimumWager(t *testing.T) {
	fx := newFixture(t, Options{MinWager: 10})
	fx.led.Register("u1", 1000)

	if _, err := fx.reg.Create("u1", "Alice", 5, 300); err == nil {
		t.Fatalf("expected error for wager below minimum")
	}
	if b := fx.led.Balance("u1"); b != 1000 {
		t.Fatalf("balance = %d, want untouched 1000", b)
	}
}

func TestJoinWagerMismatch(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 1000)
	fx.led.Register("u2", 1000)

	s, err := fx.reg.Create("u1", "Alice", 50, 300)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.reg.Join(s.Code(), "u2", "Bob", 75); !errors.Is(err, ErrWagerMismatch) {
		t.Fatalf("Join: err = %v, want ErrWagerMismatch", err)
	}
	if b := fx.led.Balance("u2"); b != 1000 {
		t.Fatalf("joiner balance = %d, want untouched 1000", b)
	}
	if s.Status() != StatusWaiting {
		t.Fatalf("status = %v, want waiting", s.Status())
	}
}

func TestJoinUnknownCode(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u2", 1000)

	if _, err := fx.reg.Join("NOPE99", "u2", "Bob", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Join: err = %v, want ErrNotFound", err)
	}
}

func TestThirdJoinRejected(t *testing.T) {
	fx := newFixture(t, Options{})
	s := startedSession(t, fx)
	fx.led.Register("u3", 1000)

	if _, err := fx.reg.Join(s.Code(), "u3", "Carol", 50); !errors.Is(err, ErrFull) {
		t.Fatalf("third join: err = %v, want ErrFull", err)
	}
	if b := fx.led.Balance("u3"); b != 1000 {
		t.Fatalf("third balance = %d, want untouched 1000", b)
	}
}

func TestCancelRefundsCreator(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 1000)

	s, err := fx.reg.Create("u1", "Alice", 50, 300)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fx.reg.Cancel(s.Code(), "u2"); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("stranger cancel: err = %v, want ErrNotCreator", err)
	}
	if err := fx.reg.Cancel(s.Code(), "u1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if b := fx.led.Balance("u1"); b != 1000 {
		t.Fatalf("balance = %d, want refunded 1000", b)
	}
	if _, err := fx.reg.Get(s.Code()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after cancel: err = %v, want ErrNotFound", err)
	}
}

func TestJoinDeliveryDoesNotStallOtherSessions(t *testing.T) {
	led := ledger.New()
	ch := &stallChannel{entered: make(chan struct{}, 1), release: make(chan struct{})}
	reg := NewRegistry(Deps{Oracle: rules.NewOracle(), Channel: ch, Ledger: led}, Options{})
	for _, h := range []string{"u1", "u2", "u3"} {
		led.Register(h, 1000)
	}
	s, err := reg.Create("u1", "Alice", 50, 300)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	joinDone := make(chan error, 1)
	go func() {
		_, err := reg.Join(s.Code(), "u2", "Bob", 50)
		joinDone <- err
	}()
	<-ch.entered // the join is now parked mid-delivery

	createDone := make(chan error, 1)
	go func() {
		_, err := reg.Create("u3", "Carol", 20, 300)
		createDone <- err
	}()
	select {
	case err := <-createDone:
		if err != nil {
			t.Fatalf("Create u3: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("unrelated create stalled behind another session's join delivery")
	}

	close(ch.release)
	if err := <-joinDone; err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := reg.SessionOf("u2"); got == nil || got.Code() != s.Code() {
		t.Fatalf("SessionOf(u2) = %v, want %s", got, s.Code())
	}
}

func TestJoinAfterCancelRejected(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 1000)
	fx.led.Register("u2", 1000)

	s, err := fx.reg.Create("u1", "Alice", 50, 300)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fx.reg.Cancel(s.Code(), "u1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// a joiner that resolved the session before the cancel still loses
	if err := s.join("u2", "Bob", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("join after cancel: err = %v, want ErrNotFound", err)
	}
	if b := fx.led.Balance("u2"); b != 1000 {
		t.Fatalf("joiner balance = %d, want untouched 1000", b)
	}
}

func TestCancelPlayingRejected(t *testing.T) {
	fx := newFixture(t, Options{})
	s := startedSession(t, fx)

	if err := fx.reg.Cancel(s.Code(), "u1"); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("cancel playing: err = %v, want ErrNotWaiting", err)
	}
}

func TestListWaitingExcludesPlaying(t *testing.T) {
	fx := newFixture(t, Options{})
	startedSession(t, fx)
	fx.led.Register("u3", 1000)
	if _, err := fx.reg.Create("u3", "Carol", 20, 300); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lobby := fx.reg.ListWaiting()
	if len(lobby) != 1 || lobby[0].Creator != "Carol" {
		t.Fatalf("lobby = %+v, want only Carol's session", lobby)
	}
	total, waiting, playing := fx.reg.Count()
	if total != 2 || waiting != 1 || playing != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/1/1", total, waiting, playing)
	}
}

func TestSessionOf(t *testing.T) {
	fx := newFixture(t, Options{})
	s := startedSession(t, fx)

	for _, h := range []string{"u1", "u2"} {
		got := fx.reg.SessionOf(h)
		if got == nil || got.Code() != s.Code() {
			t.Fatalf("SessionOf(%s) = %v, want %s", h, got, s.Code())
		}
	}
	if got := fx.reg.SessionOf("u3"); got != nil {
		t.Fatalf("SessionOf(u3) = %v, want nil", got)
	}
}

func TestDisconnectWaitingCancelsWithRefund(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.led.Register("u1", 1000)

	s, err := fx.reg.Create("u1", "Alice", 50, 300)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fx.reg.HandleDisconnect("u1")
	if b := fx.led.Balance("u1"); b != 1000 {
		t.Fatalf("balance = %d, want refunded 1000", b)
	}
	if _, err := fx.reg.Get(s.Code()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: err = %v, want ErrNotFound", err)
	}
}

func TestDisconnectPlayingSettlesForOpponent(t *testing.T) {
	fx := newFixture(t, Options{})
	s := startedSession(t, fx)

	fx.reg.HandleDisconnect("u2")
	res := s.Result()
	if res == nil || res.Tag != TagDisconnected || res.Winner != White {
		t.Fatalf("result = %+v, want opponent_disconnected/white", res)
	}
	if b := fx.led.Balance("u1"); b != 1050 {
		t.Fatalf("winner balance = %d, want 1050", b)
	}
	// unknown handles are ignored
	fx.reg.HandleDisconnect("u9")
}

func TestSettledSessionEvictedAfterGrace(t *testing.T) {
	fx := newFixture(t, Options{GraceWindow: 50 * time.Millisecond})
	s := startedSession(t, fx)

	if err := s.Resign("u1"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	// still inspectable inside the grace window
	if _, err := fx.reg.Get(s.Code()); err != nil {
		t.Fatalf("Get inside grace window: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := fx.reg.Get(s.Code()); errors.Is(err, ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not evicted after grace window")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := fx.reg.SessionOf("u1"); got != nil {
		t.Fatalf("SessionOf after eviction = %v, want nil", got)
	}
	// the transport room is torn down with the session
	if !fx.ch.roomClosed(s.Code()) {
		t.Fatalf("room for %s not closed on eviction", s.Code())
	}
}

func TestCodesAreUnique(t *testing.T) {
	fx := newFixture(t, Options{})
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		h := "u" + string(rune('a'+i))
		fx.led.Register(h, 1000)
		s, err := fx.reg.Create(h, h, 10, 300)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if seen[s.Code()] {
			t.Fatalf("duplicate code %s", s.Code())
		}
		seen[s.Code()] = true
	}
}
