package adminapi

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/apostachess/server/internal/archive"
	"github.com/apostachess/server/internal/ledger"
	"github.com/apostachess/server/internal/match"
)

type nopChannel struct{}

func (nopChannel) SendTo(string, string, any)        {}
func (nopChannel) BroadcastRoom(string, string, any) {}
func (nopChannel) BroadcastAll(string, any)          {}
func (nopChannel) CloseRoom(string)                  {}

type fakeBrowser struct {
	recs   []*archive.Record
	handle string
}

func (f *fakeBrowser) RecentByPlayer(_ context.Context, handle string, _ int) ([]*archive.Record, error) {
	f.handle = handle
	return f.recs, nil
}

func newTestServer(t *testing.T, recent archive.Browser) *Server {
	t.Helper()
	reg := match.NewRegistry(match.Deps{Channel: nopChannel{}, Ledger: ledger.New()}, match.Options{})
	lobby := match.NewBroadcaster(reg, nopChannel{})
	return New(reg, lobby, func() int { return 3 }, recent)
}

func serve(t *testing.T, s *Server, uri string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.SetRequestURI(uri)
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	s.handle(&ctx)
	return &ctx
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := serve(t, s, "http://admin/healthz")
	if ctx.Response.StatusCode() != fasthttp.StatusOK || string(ctx.Response.Body()) != "ok" {
		t.Fatalf("healthz = %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := serve(t, s, "http://admin/stats")
	var got map[string]int
	if err := json.Unmarshal(ctx.Response.Body(), &got); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if got["online"] != 3 || got["sessions"] != 0 {
		t.Fatalf("stats = %v", got)
	}
}

func TestRecent(t *testing.T) {
	fb := &fakeBrowser{recs: []*archive.Record{{GameID: "G1", Result: "draw"}}}
	s := newTestServer(t, fb)

	if ctx := serve(t, s, "http://admin/recent"); ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("missing handle: status = %d, want 400", ctx.Response.StatusCode())
	}
	ctx := serve(t, s, "http://admin/recent?handle=u1")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("recent: status = %d", ctx.Response.StatusCode())
	}
	if fb.handle != "u1" {
		t.Fatalf("queried handle = %q, want u1", fb.handle)
	}
	if !strings.Contains(string(ctx.Response.Body()), "G1") {
		t.Fatalf("body = %q, want G1 listed", ctx.Response.Body())
	}
}

func TestRecentWithoutBackend(t *testing.T) {
	s := newTestServer(t, nil)
	if ctx := serve(t, s, "http://admin/recent?handle=u1"); ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
}

func TestUnknownPath(t *testing.T) {
	s := newTestServer(t, nil)
	if ctx := serve(t, s, "http://admin/nope"); ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
}
