package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/apostachess/server/internal/adminapi"
	"github.com/apostachess/server/internal/archive"
	appcfg "github.com/apostachess/server/internal/config"
	"github.com/apostachess/server/internal/ledger"
	"github.com/apostachess/server/internal/match"
	"github.com/apostachess/server/internal/msgcat"
	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/internal/rules"
	"github.com/apostachess/server/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	catalog, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	recorder := newRecorder(cfg)

	hub := transport.NewHub()
	led := ledger.New()
	reg := match.NewRegistry(match.Deps{
		Oracle:   rules.NewOracle(),
		Channel:  hub,
		Ledger:   led,
		Messages: catalog,
		Recorder: recorder,
	}, match.Options{
		GraceWindow:     cfg.GraceWindow,
		DefaultClockSec: cfg.DefaultClockSec,
		MinWager:        cfg.MinWager,
		ChatCapacity:    cfg.ChatHistoryLimit,
	})
	lobby := match.NewBroadcaster(reg, hub)

	gateway := transport.NewServer(hub, reg, lobby, led, cfg)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: gateway.Handler()}
	go func() {
		obslog.L().Info("gateway_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.L().Fatal("gateway_listen_error", zap.Error(err))
		}
	}()

	var admin *adminapi.Server
	if cfg.AdminAddr != "" {
		browser, _ := recorder.(archive.Browser)
		admin = adminapi.New(reg, lobby, hub.Count, browser)
		go func() {
			if err := admin.ListenAndServe(cfg.AdminAddr); err != nil {
				obslog.L().Error("admin_listen_error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = httpSrv.Shutdown(sctx)
	cancel()
	if admin != nil {
		_ = admin.Shutdown()
	}
	_ = recorder.Close()
}

// newRecorder picks the archive backend: Postgres when DATABASE_URL is
// set, Redis when only REDIS_URL is, otherwise a nop.
func newRecorder(cfg *appcfg.AppConfig) archive.Recorder {
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive repository init error: %v", err)
		}
		return repo
	}
	if cfg.RedisURL != "" {
		store, err := archive.NewRedisStore(cfg.RedisURL, cfg.ArchiveTTL)
		if err != nil {
			log.Fatalf("archive redis init error: %v", err)
		}
		return store
	}
	return archive.Nop{}
}
