package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript prunes, counts and records in one step so concurrent callers
// never see the same count.
//
// KEYS[1] sorted set; ARGV: cutoff score, event score, limit, member, ttl ms.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Redis is a sliding-window limiter shared across processes. Each key is a
// sorted set of accepted event timestamps (microseconds). Redis errors fail
// open: the event is allowed and the error logged.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter. Keys are stored under prefix.
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) bool {
	now := r.now()
	cutoff := strconv.FormatInt(now.Add(-r.window).UnixMicro(), 10)
	score := strconv.FormatInt(now.UnixMicro(), 10)

	ok, err := allowScript.Run(ctx, r.client, []string{r.prefix + key},
		cutoff, score, r.limit, uuid.NewString(), r.window.Milliseconds(),
	).Int()
	if err != nil {
		r.logger.Warn("rate limit check failed, allowing", "key", key, "error", err)
		return true
	}
	return ok == 1
}
