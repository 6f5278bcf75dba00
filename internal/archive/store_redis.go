package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps settled matches in Redis with a TTL, plus a per-player
// index so recent games can be listed.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) SaveResult(ctx context.Context, rec *Record) error {
	if s == nil || s.rdb == nil || rec == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyGame(rec.GameID), raw, s.ttl).Err(); err != nil {
		return err
	}
	for _, handle := range []string{rec.WhiteHandle, rec.BlackHandle} {
		if strings.TrimSpace(handle) == "" {
			continue
		}
		key := keyPlayerIdx(handle)
		if err := s.rdb.SAdd(ctx, key, rec.GameID).Err(); err != nil {
			return err
		}
		// refresh index TTL alongside the game key so entries don't pile up
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// RecentByPlayer returns the archived games a player took part in,
// most recently ended first.
func (s *RedisStore) RecentByPlayer(ctx context.Context, handle string, limit int) ([]*Record, error) {
	if s == nil || s.rdb == nil || strings.TrimSpace(handle) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, keyPlayerIdx(handle)).Result()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyGame(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	sortRecords(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].EndedAt.After(recs[j].EndedAt) })
}

func keyGame(id string) string          { return "match:game:" + strings.TrimSpace(id) }
func keyPlayerIdx(handle string) string { return "match:index:player:" + strings.TrimSpace(handle) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
