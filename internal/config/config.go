package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string // websocket gateway
	AdminAddr  string // fasthttp ops endpoint, empty disables it

	RedisURL    string // optional finished-match archive
	DatabaseURL string // optional Postgres archive (wins over Redis)

	StartingBalance  int64
	DefaultClockSec  int
	MinWager         int64
	ChatHistoryLimit int
	GraceWindow      time.Duration
	MessageDir       string // optional msgcat override directory
	ArchiveTTL       time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":5000",
		AdminAddr:        "",
		StartingBalance:  1000,
		DefaultClockSec:  300,
		MinWager:         1,
		ChatHistoryLimit: 100,
		GraceWindow:      30 * time.Second,
		ArchiveTTL:       24 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.AdminAddr = strings.TrimSpace(os.Getenv("ADMIN_ADDR"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("STARTING_BALANCE")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.StartingBalance = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_CLOCK_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultClockSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MIN_WAGER")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MinWager = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatHistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GRACE_WINDOW_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.GraceWindow = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARCHIVE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ArchiveTTL = time.Duration(n) * time.Second
		}
	}

	return cfg, nil
}
