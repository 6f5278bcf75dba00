package match

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/pkg/wire"
)

// Options tune registry behavior; zero values fall back to defaults.
type Options struct {
	GraceWindow     time.Duration // settled-session retention before eviction
	DefaultClockSec int
	MinWager        int64
	ChatCapacity    int
}

// Registry owns the session map. Code allocation and map mutation are
// serialized under one mutex so concurrent creates can neither collide
// on codes nor lose updates. Lock order is registry → session; the
// settle path reaches back into the registry only after the session
// lock is released.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byHandle map[string]string // participant handle → session code
	timers   map[string]*time.Timer

	deps Deps
	opts Options

	onChange func() // lobby republish hook, invoked outside the lock
}

func NewRegistry(deps Deps, opts Options) *Registry {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = 30 * time.Second
	}
	if opts.DefaultClockSec <= 0 {
		opts.DefaultClockSec = 300
	}
	if opts.MinWager <= 0 {
		opts.MinWager = 1
	}
	return &Registry{
		sessions: make(map[string]*Session),
		byHandle: make(map[string]string),
		timers:   make(map[string]*time.Timer),
		deps:     deps,
		opts:     opts,
	}
}

// OnChange registers the lobby republish hook.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Create debits the wager from the creator and mints a new waiting
// session atomically: an underfunded creator produces no session, and a
// failed code mint refunds the debit.
func (r *Registry) Create(handle, name string, wager int64, clockSec int) (*Session, error) {
	if wager < r.opts.MinWager {
		return nil, fmt.Errorf("wager must be at least %d", r.opts.MinWager)
	}
	if clockSec <= 0 {
		clockSec = r.opts.DefaultClockSec
	}

	r.mu.Lock()
	if err := r.deps.Ledger.Debit(handle, wager); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	code, err := r.mintCodeLocked()
	if err != nil {
		r.deps.Ledger.Credit(handle, wager)
		r.mu.Unlock()
		return nil, err
	}
	s := newSession(r.deps, code, Participant{Handle: handle, Name: name}, wager, clockSec, r.opts.ChatCapacity)
	s.onSettled = r.scheduleEviction
	r.sessions[code] = s
	r.byHandle[handle] = code
	r.mu.Unlock()

	obslog.L().Info("session_create",
		zap.String("code", code),
		zap.String("creator", handle),
		zap.Int64("wager", wager),
		zap.Int("clock_sec", clockSec),
	)
	r.notifyChange()
	return s, nil
}

// Join seats a second participant; the session transitions to playing
// and notifies both sides. The registry lock is not held across the
// join: the session's own mutex serializes it against cancellation, and
// the start notifications must never stall unrelated sessions.
func (r *Registry) Join(code, handle, name string, wager int64) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[code]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.join(handle, name, wager); err != nil {
		return nil, err
	}

	r.mu.Lock()
	// skip the index when the session was evicted mid-join, a stale
	// entry would otherwise outlive it
	if _, live := r.sessions[code]; live {
		r.byHandle[handle] = code
	}
	r.mu.Unlock()

	r.notifyChange()
	return s, nil
}

// Cancel removes a waiting session and refunds the creator's escrow.
func (r *Registry) Cancel(code, handle string) error {
	r.mu.Lock()
	s, ok := r.sessions[code]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if err := r.cancelLocked(s, handle); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	obslog.L().Info("session_cancel", zap.String("code", code), zap.String("creator", handle))
	r.notifyChange()
	return nil
}

func (r *Registry) cancelLocked(s *Session, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusWaiting {
		return ErrNotWaiting
	}
	creator := s.players[0]
	if creator.Handle != handle {
		return ErrNotCreator
	}
	s.cancelled = true
	r.deps.Ledger.Credit(creator.Handle, s.wager)
	r.dropLocked(s.code, []string{creator.Handle})
	return nil
}

// Get looks up a live session.
func (r *Registry) Get(code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// SessionOf resolves the session a participant is seated in, if any.
func (r *Registry) SessionOf(handle string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byHandle[handle]
	if !ok {
		return nil
	}
	return r.sessions[code]
}

// Remove evicts a session. Idempotent: eviction timers fire after the
// session may already be gone, and that must be harmless.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	s, ok := r.sessions[code]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.dropLocked(code, s.ParticipantHandles())
	r.mu.Unlock()

	obslog.L().Info("session_remove", zap.String("code", code))
	r.notifyChange()
}

// dropLocked deletes the session and its indexes; caller holds r.mu.
// The transport's room goes with it so a reminted code cannot inherit
// stale subscribers.
func (r *Registry) dropLocked(code string, handles []string) {
	delete(r.sessions, code)
	for _, h := range handles {
		if r.byHandle[h] == code {
			delete(r.byHandle, h)
		}
	}
	if t, ok := r.timers[code]; ok {
		t.Stop()
		delete(r.timers, code)
	}
	r.deps.Channel.CloseRoom(code)
}

// ListWaiting recomputes the lobby snapshot; ordering is by code, not
// insertion, since the map churns.
func (r *Registry) ListWaiting() []wire.LobbyEntry {
	r.mu.Lock()
	waiting := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		waiting = append(waiting, s)
	}
	r.mu.Unlock()

	out := make([]wire.LobbyEntry, 0, len(waiting))
	for _, s := range waiting {
		if s.Status() != StatusWaiting {
			continue
		}
		out = append(out, s.LobbyEntry())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Count returns live session totals for the ops endpoint.
func (r *Registry) Count() (total, waiting, playing int) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	total = len(sessions)
	for _, s := range sessions {
		switch s.Status() {
		case StatusWaiting:
			waiting++
		case StatusPlaying:
			playing++
		}
	}
	return total, waiting, playing
}

// HandleDisconnect tears down whatever the dropped participant was part
// of: a waiting session they created is cancelled with refund, a
// playing session settles in the opponent's favor.
func (r *Registry) HandleDisconnect(handle string) {
	r.mu.Lock()
	code, ok := r.byHandle[handle]
	if !ok {
		r.mu.Unlock()
		return
	}
	s := r.sessions[code]
	if s == nil {
		delete(r.byHandle, handle)
		r.mu.Unlock()
		return
	}
	cancelled := false
	if err := r.cancelLocked(s, handle); err == nil {
		cancelled = true
	}
	r.mu.Unlock()

	if cancelled {
		obslog.L().Info("session_cancel_disconnect", zap.String("code", code), zap.String("handle", handle))
		r.notifyChange()
		return
	}
	// not a waiting session they created: forced loss if still playing,
	// no-op if already settled
	s.DisconnectOf(handle)
}

// scheduleEviction arms (or re-arms) the post-settlement grace timer.
func (r *Registry) scheduleEviction(code string) {
	r.mu.Lock()
	if t, ok := r.timers[code]; ok {
		t.Stop()
	}
	r.timers[code] = time.AfterFunc(r.opts.GraceWindow, func() { r.Remove(code) })
	r.mu.Unlock()
}

func (r *Registry) notifyChange() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// mintCodeLocked allocates a 6-char upper-alnum code unique among live
// sessions, retrying on collision.
func (r *Registry) mintCodeLocked() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for i := 0; i < 5; i++ {
		b := make([]byte, 6)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		for j := range b {
			b[j] = letters[int(b[j])%len(letters)]
		}
		code := string(b)
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to allocate session code")
}
