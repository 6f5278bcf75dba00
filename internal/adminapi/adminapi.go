package adminapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/apostachess/server/internal/archive"
	"github.com/apostachess/server/internal/match"
	"github.com/apostachess/server/internal/obslog"
)

// Server is the read-only ops endpoint: health, lobby snapshot, counters
// and the archived-game listing. It never mutates game state.
type Server struct {
	reg    *match.Registry
	lobby  *match.Broadcaster
	online func() int
	recent archive.Browser // nil when the archive backend cannot list
	srv    *fasthttp.Server
}

func New(reg *match.Registry, lobby *match.Broadcaster, online func() int, recent archive.Browser) *Server {
	s := &Server{reg: reg, lobby: lobby, online: online, recent: recent}
	s.srv = &fasthttp.Server{Handler: s.handle, Name: "apostachess-admin"}
	return s
}

// ListenAndServe blocks serving the admin API.
func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("admin_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/lobby":
		writeJSON(ctx, s.lobby.Snapshot())
	case "/stats":
		total, waiting, playing := s.reg.Count()
		writeJSON(ctx, map[string]int{
			"sessions": total,
			"waiting":  waiting,
			"playing":  playing,
			"online":   s.online(),
		})
	case "/recent":
		s.handleRecent(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// handleRecent lists a player's archived games, newest first. 404 when
// no listing-capable archive backend is configured.
func (s *Server) handleRecent(ctx *fasthttp.RequestCtx) {
	if s.recent == nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	handle := strings.TrimSpace(string(ctx.QueryArgs().Peek("handle")))
	if handle == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("handle query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	recs, err := s.recent.RecentByPlayer(ctx, handle, limit)
	if err != nil {
		obslog.L().Error("admin_recent_error", zap.String("handle", handle), zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*archive.Record{}
	}
	writeJSON(ctx, recs)
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}
