package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apostachess/server/internal/archive"
	"github.com/apostachess/server/internal/ledger"
	"github.com/apostachess/server/internal/msgcat"
	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/internal/rules"
	"github.com/apostachess/server/pkg/wire"
)

// Deps are the collaborators a session operates against. Channel and
// Recorder are best-effort; Oracle and Ledger are required.
type Deps struct {
	Oracle   rules.Oracle
	Channel  Channel
	Ledger   *ledger.Ledger
	Messages *msgcat.Catalog
	Recorder archive.Recorder
}

// Session owns one match's authoritative state. Every mutating operation
// takes the session mutex; nothing inside a lock blocks on I/O beyond
// the fire-and-forget Channel.
type Session struct {
	mu sync.Mutex

	deps Deps

	code        string
	creatorName string
	wager       int64
	clockSec    int
	chatCap     int
	createdAt   time.Time
	startedAt   time.Time

	players     []*Participant // players[0] = creator = white
	status      Status
	movesUCI    []string
	movesSAN    []string
	fen         string
	sideToMove  Color
	lastMove    *LastMove
	drawOfferBy Color // "" = no pending offer

	whiteRemaining time.Duration
	blackRemaining time.Duration
	turnStartedAt  time.Time

	chat []wire.ChatMessage

	settled   bool
	cancelled bool // creator withdrew; set under the registry's cancel
	result    *Result
	record    *archive.Record
	onSettled func(code string) // set by the registry, runs outside the lock
}

func newSession(deps Deps, code string, creator Participant, wager int64, clockSec, chatCap int) *Session {
	if chatCap <= 0 {
		chatCap = 100
	}
	creator.Color = White
	s := &Session{
		deps:        deps,
		code:        code,
		creatorName: creator.Name,
		wager:       wager,
		clockSec:    clockSec,
		chatCap:     chatCap,
		createdAt:   time.Now(),
		players:     []*Participant{&creator},
		status:      StatusWaiting,
		fen:         deps.Oracle.StartFEN(),
		sideToMove:  White,
	}
	return s
}

// Code returns the session's lobby code.
func (s *Session) Code() string { return s.code }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Occupancy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// ParticipantHandles snapshots the seated handles.
func (s *Session) ParticipantHandles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p.Handle)
	}
	return out
}

// LobbyEntry renders the session for the waiting-list snapshot.
func (s *Session) LobbyEntry() wire.LobbyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wire.LobbyEntry{
		GameID:       s.code,
		Creator:      s.creatorName,
		BetAmount:    s.wager,
		TimeControls: s.clockSec,
		Players:      len(s.players),
	}
}

// Result returns the settlement outcome, nil while unsettled.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// join seats the second participant and starts the match. Runs outside
// the registry lock; this mutex is what serializes it against cancel.
func (s *Session) join(handle, name string, wager int64) error {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return ErrNotFound
	}
	if s.status != StatusWaiting || len(s.players) >= 2 {
		s.mu.Unlock()
		return ErrFull
	}
	if wager != s.wager {
		s.mu.Unlock()
		return ErrWagerMismatch
	}
	if err := s.deps.Ledger.Debit(handle, s.wager); err != nil {
		s.mu.Unlock()
		return err
	}

	joiner := &Participant{Handle: handle, Name: name, Color: Black}
	s.players = append(s.players, joiner)
	s.status = StatusPlaying
	now := time.Now()
	s.startedAt = now
	s.turnStartedAt = now
	s.whiteRemaining = time.Duration(s.clockSec) * time.Second
	s.blackRemaining = s.whiteRemaining

	s.appendSystemChatLocked(s.text("chat.joined",
		map[string]any{"Name": name, "Color": string(Black)},
		fmt.Sprintf("%s joined as black", name)))

	for _, p := range s.players {
		opp := s.playerByColorLocked(p.Color.Opponent())
		s.deps.Channel.SendTo(p.Handle, wire.EventGameStarted, wire.GameStarted{
			GameID:       s.code,
			PlayerColor:  string(p.Color),
			OpponentName: opp.Name,
			BetAmount:    s.wager,
			TimeControls: s.clockSec,
			FEN:          s.fen,
			SideToMove:   string(s.sideToMove),
		})
	}
	s.mu.Unlock()

	obslog.L().Info("session_start",
		zap.String("code", s.code),
		zap.String("joiner", handle),
		zap.Int64("wager", wager),
	)
	return nil
}

// Move validates turn order, delegates legality to the oracle, applies
// the result and broadcasts it. A terminal verdict settles immediately.
func (s *Session) Move(handle string, from, to wire.Coord, promotion string) (*MoveOutcome, error) {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return nil, ErrNotPlaying
	}
	p := s.participantLocked(handle)
	if p == nil {
		s.mu.Unlock()
		return nil, ErrNotInGame
	}
	if p.Color != s.sideToMove {
		s.mu.Unlock()
		return nil, ErrWrongTurn
	}
	fromSq, err := from.Square()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	toSq, err := to.Square()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	now := time.Now()
	elapsed := now.Sub(s.turnStartedAt)
	if s.remainingLocked(p.Color) <= elapsed {
		// the mover's flag fell before this move arrived
		s.setRemainingLocked(p.Color, 0)
		res := timeoutResult(p.Color)
		settledNow := s.settleLocked(res)
		s.mu.Unlock()
		if settledNow {
			s.afterSettle()
		}
		return &MoveOutcome{Terminal: &res, TimedOut: true}, nil
	}

	mres, err := s.deps.Oracle.Apply(s.movesUCI, fromSq, toSq, promotion)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil, fmt.Errorf("%w: %s%s", ErrIllegalMove, fromSq, toSq)
		}
		return nil, err
	}

	s.movesUCI = append(s.movesUCI, mres.UCI)
	s.movesSAN = append(s.movesSAN, mres.SAN)
	s.fen = mres.FEN
	s.sideToMove = Color(mres.SideToMove)
	s.lastMove = &LastMove{From: fromSq, To: toSq}
	s.drawOfferBy = ""
	s.setRemainingLocked(p.Color, s.remainingLocked(p.Color)-elapsed)
	s.turnStartedAt = now

	s.appendSystemChatLocked(s.text("chat.move",
		map[string]any{"Name": p.Name, "SAN": mres.SAN},
		fmt.Sprintf("%s played %s", p.Name, mres.SAN)))

	s.deps.Channel.BroadcastRoom(s.code, wire.EventMoveMade, wire.MoveMade{
		GameID:     s.code,
		From:       from,
		To:         to,
		SAN:        mres.SAN,
		UCI:        mres.UCI,
		FEN:        s.fen,
		SideToMove: string(s.sideToMove),
		WhiteTime:  int(s.whiteRemaining.Seconds()),
		BlackTime:  int(s.blackRemaining.Seconds()),
	})

	out := &MoveOutcome{
		SAN:        mres.SAN,
		UCI:        mres.UCI,
		FEN:        s.fen,
		SideToMove: s.sideToMove,
	}
	var settledNow bool
	if mres.Verdict.Over {
		res := resultFromVerdict(mres.Verdict)
		out.Terminal = &res
		settledNow = s.settleLocked(res)
	}
	s.mu.Unlock()
	if settledNow {
		s.afterSettle()
	}

	obslog.L().Info("session_move",
		zap.String("code", s.code),
		zap.String("player", handle),
		zap.String("uci", mres.UCI),
		zap.Bool("terminal", out.Terminal != nil),
	)
	return out, nil
}

// OfferDraw records a fresh offer or, when the opposite color already
// holds the pending offer, accepts it and settles as a draw. A repeated
// offer from the color that already offered is a silent refresh: the
// offer stays pending and the opponent is not notified again.
func (s *Session) OfferDraw(handle string) (DrawReply, error) {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return "", ErrNotPlaying
	}
	p := s.participantLocked(handle)
	if p == nil {
		s.mu.Unlock()
		return "", ErrNotInGame
	}
	switch s.drawOfferBy {
	case "":
		s.drawOfferBy = p.Color
		if opp := s.playerByColorLocked(p.Color.Opponent()); opp != nil {
			s.deps.Channel.SendTo(opp.Handle, wire.EventDrawOffered, wire.DrawOffered{
				GameID: s.code,
				By:     string(p.Color),
			})
		}
		s.appendSystemChatLocked(s.text("chat.draw_offer",
			map[string]any{"Name": p.Name},
			fmt.Sprintf("%s offered a draw", p.Name)))
		s.mu.Unlock()
		return DrawOffered, nil
	case p.Color:
		s.mu.Unlock()
		return DrawOffered, nil
	default:
		res := Result{Tag: TagDraw, Reason: "agreement"}
		settledNow := s.settleLocked(res)
		s.mu.Unlock()
		if settledNow {
			s.afterSettle()
		}
		return DrawAccepted, nil
	}
}

// DeclineDraw clears a pending offer from the opposite color and tells
// the offerer. Declining when nothing is pending is a no-op.
func (s *Session) DeclineDraw(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	p := s.participantLocked(handle)
	if p == nil {
		return ErrNotInGame
	}
	if s.drawOfferBy == "" || s.drawOfferBy == p.Color {
		return nil
	}
	offerer := s.playerByColorLocked(s.drawOfferBy)
	s.drawOfferBy = ""
	if offerer != nil {
		s.deps.Channel.SendTo(offerer.Handle, wire.EventDrawDeclined, wire.DrawDeclined{
			GameID: s.code,
			By:     string(p.Color),
		})
	}
	s.appendSystemChatLocked(s.text("chat.draw_declined",
		map[string]any{"Name": p.Name},
		fmt.Sprintf("%s declined the draw", p.Name)))
	return nil
}

// Resign settles the match in the opponent's favor.
func (s *Session) Resign(handle string) error {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	p := s.participantLocked(handle)
	if p == nil {
		s.mu.Unlock()
		return ErrNotInGame
	}
	res := Result{Winner: p.Color.Opponent(), Reason: "resignation"}
	if p.Color == White {
		res.Tag = TagWhiteResigned
	} else {
		res.Tag = TagBlackResigned
	}
	settledNow := s.settleLocked(res)
	s.mu.Unlock()
	if settledNow {
		s.afterSettle()
	}
	return nil
}

// Timeout settles the match against the flagged color. The claim is
// client-reported, so it is honored only from a seated participant and
// only when the server's own clock agrees: the flagged side must be on
// move with its remaining time spent.
func (s *Session) Timeout(handle string, flagged Color) error {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	if s.participantLocked(handle) == nil {
		s.mu.Unlock()
		return ErrNotInGame
	}
	if flagged != s.sideToMove || s.remainingLocked(flagged) > time.Since(s.turnStartedAt) {
		s.mu.Unlock()
		return ErrClockRunning
	}
	s.setRemainingLocked(flagged, 0)
	res := timeoutResult(flagged)
	settledNow := s.settleLocked(res)
	s.mu.Unlock()
	if settledNow {
		s.afterSettle()
	}
	return nil
}

// DisconnectOf handles a participant's link dropping mid-game: the
// remaining player is warned, then credited as the winner. Safe to call
// on an already-settled session.
func (s *Session) DisconnectOf(handle string) {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return
	}
	p := s.participantLocked(handle)
	if p == nil {
		s.mu.Unlock()
		return
	}
	if remaining := s.playerByColorLocked(p.Color.Opponent()); remaining != nil {
		s.deps.Channel.SendTo(remaining.Handle, wire.EventPlayerDisconnected, wire.PlayerDisconnected{GameID: s.code})
	}
	res := Result{Tag: TagDisconnected, Winner: p.Color.Opponent(), Reason: "disconnect"}
	settledNow := s.settleLocked(res)
	s.mu.Unlock()
	if settledNow {
		s.afterSettle()
	}
}

// SendChat appends a player line to the transcript and broadcasts it.
// Allowed in any status so the result can be discussed during the grace
// window.
func (s *Session) SendChat(handle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.participantLocked(handle)
	if p == nil {
		return ErrNotInGame
	}
	entry := wire.ChatMessage{GameID: s.code, Sender: p.Name, Text: text}
	s.appendChatLocked(entry)
	return nil
}

// ChatHistory snapshots the transcript ring, oldest first.
func (s *Session) ChatHistory() []wire.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// settleLocked applies the one-time payout and finishes the session.
// Returns false when the session was already settled; the second
// attempt is swallowed and logged, never surfaced (a terminal move can
// race a timeout or disconnect signal).
func (s *Session) settleLocked(res Result) bool {
	if s.settled || s.status != StatusPlaying {
		obslog.L().Info("session_settle_skip",
			zap.String("code", s.code),
			zap.String("tag", res.Tag),
		)
		return false
	}
	s.settled = true
	s.status = StatusFinished
	s.result = &res

	// win: winner recovers the escrowed wager plus the opponent's;
	// draw: both escrows are refunded in full
	if res.Winner != "" {
		if w := s.playerByColorLocked(res.Winner); w != nil {
			s.deps.Ledger.Credit(w.Handle, 2*s.wager)
		}
	} else {
		for _, p := range s.players {
			s.deps.Ledger.Credit(p.Handle, s.wager)
		}
	}

	balances := make(map[string]int64, len(s.players))
	for _, p := range s.players {
		balances[p.Handle] = s.deps.Ledger.Balance(p.Handle)
	}

	s.appendSystemChatLocked(s.resultTextLocked(res))
	s.deps.Channel.BroadcastRoom(s.code, wire.EventGameFinished, wire.GameFinished{
		GameID:   s.code,
		Result:   res.Tag,
		Reason:   res.Reason,
		Balances: balances,
	})

	s.record = s.buildRecordLocked(res)

	obslog.L().Info("session_settle",
		zap.String("code", s.code),
		zap.String("tag", res.Tag),
		zap.String("reason", res.Reason),
		zap.Int64("wager", s.wager),
	)
	return true
}

// afterSettle runs the post-settlement work that must not hold the
// session lock: archiving and the registry's eviction scheduling.
func (s *Session) afterSettle() {
	s.mu.Lock()
	rec := s.record
	s.record = nil
	cb := s.onSettled
	s.mu.Unlock()

	if rec != nil && s.deps.Recorder != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.deps.Recorder.SaveResult(ctx, rec); err != nil {
				obslog.L().Error("session_archive_error",
					zap.String("code", s.code),
					zap.Error(err),
				)
			}
		}()
	}
	if cb != nil {
		cb(s.code)
	}
}

func (s *Session) buildRecordLocked(res Result) *archive.Record {
	rec := &archive.Record{
		GameID:    s.code,
		Wager:     s.wager,
		Result:    res.Tag,
		Reason:    res.Reason,
		MovesUCI:  append([]string(nil), s.movesUCI...),
		MovesSAN:  append([]string(nil), s.movesSAN...),
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
	}
	for _, p := range s.players {
		if p.Color == White {
			rec.WhiteHandle, rec.WhiteName = p.Handle, p.Name
		} else {
			rec.BlackHandle, rec.BlackName = p.Handle, p.Name
		}
	}
	return rec
}

func (s *Session) participantLocked(handle string) *Participant {
	for _, p := range s.players {
		if p.Handle == handle {
			return p
		}
	}
	return nil
}

func (s *Session) playerByColorLocked(c Color) *Participant {
	for _, p := range s.players {
		if p.Color == c {
			return p
		}
	}
	return nil
}

func (s *Session) remainingLocked(c Color) time.Duration {
	if c == White {
		return s.whiteRemaining
	}
	return s.blackRemaining
}

func (s *Session) setRemainingLocked(c Color, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if c == White {
		s.whiteRemaining = d
	} else {
		s.blackRemaining = d
	}
}

// appendChatLocked pushes onto the bounded transcript ring, evicting the
// oldest line, and broadcasts the entry.
func (s *Session) appendChatLocked(entry wire.ChatMessage) {
	s.chat = append(s.chat, entry)
	if len(s.chat) > s.chatCap {
		s.chat = s.chat[len(s.chat)-s.chatCap:]
	}
	s.deps.Channel.BroadcastRoom(s.code, wire.EventChatMessage, entry)
}

func (s *Session) appendSystemChatLocked(text string) {
	s.appendChatLocked(wire.ChatMessage{GameID: s.code, Sender: "system", Text: text, System: true})
}

func (s *Session) text(key string, data map[string]any, fallback string) string {
	if s.deps.Messages == nil {
		return fallback
	}
	out, err := s.deps.Messages.Render(key, data)
	if err != nil {
		return fallback
	}
	return out
}

func (s *Session) resultTextLocked(res Result) string {
	winner := ""
	if res.Winner != "" {
		winner = string(res.Winner)
	}
	fallback := res.Tag
	return s.text("result."+res.Tag, map[string]any{"Reason": res.Reason, "Winner": winner}, fallback)
}

func resultFromVerdict(v rules.Verdict) Result {
	switch v.Winner {
	case "white":
		return Result{Tag: TagWhiteWins, Winner: White, Reason: v.Method}
	case "black":
		return Result{Tag: TagBlackWins, Winner: Black, Reason: v.Method}
	default:
		return Result{Tag: TagDraw, Reason: v.Method}
	}
}

func timeoutResult(flagged Color) Result {
	res := Result{Winner: flagged.Opponent(), Reason: "timeout"}
	if flagged == White {
		res.Tag = TagTimeoutWhite
	} else {
		res.Tag = TagTimeoutBlack
	}
	return res
}
