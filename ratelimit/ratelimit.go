package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// Decision is the outcome of one sliding-window check
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Options provides initialization parameters for the Limiter
type Options struct {
	Redis  redis.UniversalClient
	Logger *zap.Logger
	Limit  int64
	Window time.Duration
	Prefix string
}

// Limiter is a per-identifier sliding-window rate limiter over Redis,
// independent of the subscription quota ledger. It smooths bursts
// (e.g. 10 requests per 10 seconds) while the ledger enforces the
// calendar quotas.
type Limiter struct {
	Options
}

// New returns a sliding window Limiter backed by Redis sorted sets
func New(option Options) (*Limiter, error) {
	if option.Redis == nil {
		return nil, fmt.Errorf("nil Redis is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Limit <= 0 {
		return nil, fmt.Errorf("non-positive Limit is invalid")
	}
	if option.Window <= 0 {
		return nil, fmt.Errorf("non-positive Window is invalid")
	}
	if option.Prefix == "" {
		option.Prefix = "ratelimit"
	}
	return &Limiter{
		Options: option,
	}, nil
}

// Allow records one hit for the identifier and reports whether it fits in the
// current window. The hit is counted even when denied, matching sliding-window
// semantics where hammering a limited identifier keeps it limited.
func (l *Limiter) Allow(identifier string) (*Decision, error) {
	now := time.Now()
	windowStart := now.Add(-l.Window)
	key := l.Prefix + ":" + identifier

	pipe := l.Redis.TxPipeline()
	pipe.ZRemRangeByScore(key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: shortuuid.New(),
	})
	countCmd := pipe.ZCard(key)
	// PExpire, not Expire: Expire truncates to whole seconds, which turns a
	// sub-second window into an immediate expiry that deletes the key
	pipe.PExpire(key, l.Window)
	if _, err := pipe.Exec(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot execute rate limit commands")
	}

	count := countCmd.Val()
	decision := &Decision{
		Allowed:   count <= l.Limit,
		Limit:     l.Limit,
		Remaining: l.Limit - count,
		Reset:     now.Add(l.Window),
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision, nil
}
