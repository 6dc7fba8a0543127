package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// fixedWindowLua counts a request against the current window and reports
// whether it stays within the limit. KEYS[1] window key, ARGV[1] limit,
// ARGV[2] window length in ms.
const fixedWindowLua = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
    return 0
end
return 1
`

const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with fixed windows shared by
// every process using the same Redis, keeping the combined REST request rate
// under the exchange's limit.
type RateLimiter struct {
	c      *Client
	limit  int
	window time.Duration
	script *redis.Script
}

// NewRateLimiter allows limit requests per window for each key.
func NewRateLimiter(c *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		c:      c,
		limit:  limit,
		window: window,
		script: redis.NewScript(fixedWindowLua),
	}
}

// Allow counts one request for key and reports whether it is permitted.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := time.Now().UnixMilli() / rl.window.Milliseconds()
	k := rl.c.key("ratelimit", key, fmt.Sprint(slot))
	ok, err := rl.script.Run(ctx, rl.c.rdb, []string{k}, rl.limit, rl.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	return ok == 1, nil
}

// Wait blocks until a request for key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
