// Package ratelimit throttles inbound SMS per phone and enforces a global
// daily cap, with automatic blocking of abusive senders. Counters live in
// Redis so limits hold across instances and restarts.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/bookline/pkg/logging"
)

const (
	minuteKeyPrefix = "bookline:rl:min:"
	dayKeyPrefix    = "bookline:rl:day:"
	blockKeyPrefix  = "bookline:rl:block:"
)

// Reasons an inbound message can be refused.
const (
	ReasonPerMinute = "per_minute"
	ReasonBlocked   = "blocked"
	ReasonDailyCap  = "daily_cap"
)

// Config tunes the limiter.
type Config struct {
	PerMinute      int
	BlockThreshold int
	BlockDuration  time.Duration
	DailyCap       int
}

// Limiter decides whether an inbound message should be processed.
type Limiter struct {
	rdb    *redis.Client
	cfg    Config
	logger *logging.Logger
}

// NewLimiter creates a limiter with defaults filled in.
func NewLimiter(rdb *redis.Client, cfg Config, logger *logging.Logger) *Limiter {
	if rdb == nil {
		panic("ratelimit: redis client required")
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 30
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 24 * time.Hour
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = 1000
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Limiter{rdb: rdb, cfg: cfg, logger: logger}
}

// Allow checks and consumes quota for one inbound message from phone. It
// fails open: a Redis outage admits traffic rather than silencing the
// assistant.
func (l *Limiter) Allow(ctx context.Context, phone string) (bool, string) {
	now := time.Now().UTC()

	blocked, err := l.rdb.Exists(ctx, blockKeyPrefix+phone).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "error", err)
		return true, ""
	}
	if blocked > 0 {
		return false, ReasonBlocked
	}

	dayKey := dayKeyPrefix + now.Format("2006-01-02")
	dayCount, err := l.rdb.Incr(ctx, dayKey).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "error", err)
		return true, ""
	}
	if dayCount == 1 {
		l.rdb.Expire(ctx, dayKey, 48*time.Hour)
	}
	if dayCount > int64(l.cfg.DailyCap) {
		return false, ReasonDailyCap
	}

	minuteKey := fmt.Sprintf("%s%s:%d", minuteKeyPrefix, phone, now.Unix()/60)
	minCount, err := l.rdb.Incr(ctx, minuteKey).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "error", err)
		return true, ""
	}
	if minCount == 1 {
		l.rdb.Expire(ctx, minuteKey, 2*time.Minute)
	}

	if minCount > int64(l.cfg.BlockThreshold) {
		record, _ := json.Marshal(BlockedEntry{Phone: phone, Reason: "flooding", Auto: true})
		if err := l.rdb.Set(ctx, blockKeyPrefix+phone, record, l.cfg.BlockDuration).Err(); err != nil {
			l.logger.Warn("failed to set block", "error", err, "phone", phone)
		} else {
			l.logger.Warn("phone auto-blocked for flooding", "phone", phone, "count", minCount)
		}
		return false, ReasonBlocked
	}
	if minCount > int64(l.cfg.PerMinute) {
		return false, ReasonPerMinute
	}
	return true, ""
}

// BlockedEntry describes one blocked phone.
type BlockedEntry struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason,omitempty"`
	Auto   bool   `json:"is_auto"`
}

// Block puts a manual block on a phone. Manual blocks do not expire.
func (l *Limiter) Block(ctx context.Context, phone, reason string) error {
	record, err := json.Marshal(BlockedEntry{Phone: phone, Reason: reason, Auto: false})
	if err != nil {
		return fmt.Errorf("ratelimit: block: %w", err)
	}
	if err := l.rdb.Set(ctx, blockKeyPrefix+phone, record, 0).Err(); err != nil {
		return fmt.Errorf("ratelimit: block: %w", err)
	}
	return nil
}

// Unblock lifts a block placed on a phone. Returns false if the phone was
// not blocked.
func (l *Limiter) Unblock(ctx context.Context, phone string) (bool, error) {
	removed, err := l.rdb.Del(ctx, blockKeyPrefix+phone).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: unblock: %w", err)
	}
	return removed > 0, nil
}

// Blocked lists all currently blocked phones.
func (l *Limiter) Blocked(ctx context.Context) ([]BlockedEntry, error) {
	var entries []BlockedEntry
	iter := l.rdb.Scan(ctx, 0, blockKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := l.rdb.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("ratelimit: list blocked: %w", err)
		}
		var entry BlockedEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Legacy or hand-set value: fall back to the key.
			entry = BlockedEntry{Reason: raw, Auto: true}
		}
		if entry.Phone == "" {
			entry.Phone = strings.TrimPrefix(key, blockKeyPrefix)
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ratelimit: list blocked: %w", err)
	}
	return entries, nil
}
