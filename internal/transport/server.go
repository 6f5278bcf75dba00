package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/apostachess/server/internal/config"
	"github.com/apostachess/server/internal/ledger"
	"github.com/apostachess/server/internal/match"
	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/pkg/wire"
)

// Server accepts websocket clients and routes their event frames to the
// registry and sessions. One goroutine per connection reads frames; all
// session work happens on that goroutine, serialized per session by the
// session's own lock.
type Server struct {
	hub   *Hub
	reg   *match.Registry
	lobby *match.Broadcaster
	led   *ledger.Ledger
	cfg   *config.AppConfig
}

func NewServer(hub *Hub, reg *match.Registry, lobby *match.Broadcaster, led *ledger.Ledger, cfg *config.AppConfig) *Server {
	return &Server{hub: hub, reg: reg, lobby: lobby, led: led, cfg: cfg}
}

// Handler returns the websocket upgrade endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
			OriginPatterns:  []string{"*"},
		})
		if err != nil {
			obslog.L().Warn("ws_accept_error", zap.Error(err))
			return
		}
		s.serveConn(r.Context(), conn)
	})
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	handle := uuid.NewString()
	s.led.Register(handle, s.cfg.StartingBalance)
	cl := s.hub.add(handle, conn)
	obslog.L().Info("client_connect", zap.String("handle", handle))

	s.hub.BroadcastAll(wire.EventPlayersOnline, wire.PlayersOnline{Count: s.hub.Count()})
	s.hub.SendTo(handle, wire.EventAvailableGames, s.lobby.Snapshot())

	defer func() {
		s.hub.remove(handle)
		s.reg.HandleDisconnect(handle)
		s.led.Remove(handle)
		s.hub.BroadcastAll(wire.EventPlayersOnline, wire.PlayersOnline{Count: s.hub.Count()})
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		obslog.L().Info("client_disconnect", zap.String("handle", handle))
	}()

	for {
		var frame wire.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}
		s.dispatch(cl, frame)
	}
}

// dispatch decodes the frame's payload against the closed event set and
// executes it. Every failure is reported to the originating client only.
func (s *Server) dispatch(cl *client, frame wire.Frame) {
	handle := cl.handle
	switch frame.Event {
	case wire.EventCreateGame:
		var req wire.CreateGameRequest
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		if strings.TrimSpace(req.PlayerName) == "" || req.BetAmount <= 0 {
			s.sendError(handle, wire.CodeBadRequest, "playerName and a positive betAmount are required")
			return
		}
		sess, err := s.reg.Create(handle, req.PlayerName, req.BetAmount, req.TimeControls)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		s.hub.JoinRoom(sess.Code(), handle)
		s.hub.SendTo(handle, wire.EventGameCreated, wire.GameCreated{
			GameID:      sess.Code(),
			PlayerColor: string(match.White),
			BetAmount:   req.BetAmount,
		})

	case wire.EventJoinGame:
		var req wire.JoinGameRequest
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		if strings.TrimSpace(req.PlayerName) == "" {
			s.sendError(handle, wire.CodeBadRequest, "playerName is required")
			return
		}
		// subscribe before the join so the gameStarted push is not missed
		s.hub.JoinRoom(req.GameID, handle)
		if _, err := s.reg.Join(req.GameID, handle, req.PlayerName, req.BetAmount); err != nil {
			s.hub.LeaveRoom(req.GameID, handle)
			s.sendError(handle, codeOf(err), err.Error())
			return
		}

	case wire.EventMakeMove:
		var req wire.MoveRequest
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if _, err := sess.Move(handle, req.From, req.To, req.Promotion); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventOfferDraw, wire.EventAcceptDraw:
		// an explicit accept is the mutual-offer acceptance path
		var req wire.GameRef
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if _, err := sess.OfferDraw(handle); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventDeclineDraw:
		var req wire.GameRef
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if err := sess.DeclineDraw(handle); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventResignGame:
		var req wire.GameRef
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if err := sess.Resign(handle); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventTimeout:
		var req wire.TimeoutRequest
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		color := match.Color(strings.ToLower(strings.TrimSpace(req.Player)))
		if color != match.White && color != match.Black {
			s.sendError(handle, wire.CodeBadRequest, "player must be white or black")
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if err := sess.Timeout(handle, color); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventCancelGame:
		var req wire.GameRef
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		if err := s.reg.Cancel(req.GameID, handle); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventSendChat:
		var req wire.ChatRequest
		if !s.decode(handle, frame.Data, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			return
		}
		sess, err := s.reg.Get(req.GameID)
		if err != nil {
			s.sendError(handle, codeOf(err), err.Error())
			return
		}
		if err := sess.SendChat(handle, req.Message); err != nil {
			s.sendError(handle, codeOf(err), err.Error())
		}

	case wire.EventRequestGames:
		s.hub.SendTo(handle, wire.EventAvailableGames, s.lobby.Snapshot())

	default:
		s.sendError(handle, wire.CodeBadRequest, "unknown event: "+frame.Event)
	}
}

func (s *Server) decode(handle string, data json.RawMessage, into any) bool {
	if len(data) == 0 {
		s.sendError(handle, wire.CodeBadRequest, "missing payload")
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		s.sendError(handle, wire.CodeBadRequest, "malformed payload")
		return false
	}
	return true
}

func (s *Server) sendError(handle, code, message string) {
	s.hub.SendTo(handle, wire.EventError, wire.ErrorPayload{Code: code, Message: message})
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, match.ErrNotFound):
		return wire.CodeNotFound
	case errors.Is(err, match.ErrFull):
		return wire.CodeFull
	case errors.Is(err, match.ErrWagerMismatch):
		return wire.CodeWagerMismatch
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return wire.CodeInsufficientBalance
	case errors.Is(err, match.ErrWrongTurn):
		return wire.CodeWrongTurn
	case errors.Is(err, match.ErrIllegalMove):
		return wire.CodeIllegalMove
	case errors.Is(err, match.ErrNotPlaying):
		return wire.CodeNotPlaying
	case errors.Is(err, match.ErrNotWaiting):
		return wire.CodeNotWaiting
	case errors.Is(err, match.ErrNotCreator):
		return wire.CodeNotCreator
	default:
		return wire.CodeBadRequest
	}
}
