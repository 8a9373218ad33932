package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// luaScript keeps the source next to its compiled handle so a NOSCRIPT
// reply can fall back to EVAL.
type luaScript struct {
	src string
	*redis.Script
}

func newLuaScript(src string) luaScript {
	return luaScript{src: src, Script: redis.NewScript(src)}
}

var (
	// INCR and PEXPIRE together, so no counter outlives its window.
	incrWindow = newLuaScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n`)

	// DEL only while the key still holds the caller's token.
	releaseIfOwner = newLuaScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0`)
)

func (c *Client) eval(ctx context.Context, s luaScript, keys []string, args ...any) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	n, err := c.cmd.EvalSha(ctx, s.Hash(), keys, args...).Int64()
	if redis.HasErrorPrefix(err, "NOSCRIPT") {
		n, err = c.cmd.Eval(ctx, s.src, keys, args...).Int64()
	}
	return n, err
}

// FixedWindowAllow records one hit for scope. It reports whether the hit is
// within limit along with the window's running count.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	n, err := c.eval(ctx, incrWindow, []string{c.RateLimitKey(scope)}, window.Milliseconds())
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return n <= limit, n, nil
}

// CompareAndDelete releases key only if it still holds value. A lease that
// expired and was taken by another worker survives.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := c.eval(ctx, releaseIfOwner, []string{key}, value)
	return n == 1, err
}
