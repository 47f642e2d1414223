package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	minuteWindow = 60 * time.Second
	dayWindow    = 24 * time.Hour
)

// consumeScript atomically checks both buckets and decrements each when
// both have tokens. A missing key means a full bucket. TTLs are refreshed
// to the window length on every successful consume. Running this as a Lua
// script is what makes the limiter safe across processes; a read-modify-
// write from Go would race.
const consumeScript = `
local minute_key = KEYS[1]
local day_key = KEYS[2]
local minute_limit = tonumber(ARGV[1])
local day_limit = tonumber(ARGV[2])
local minute_window = tonumber(ARGV[3])
local day_window = tonumber(ARGV[4])

local minute_tokens = tonumber(redis.call('GET', minute_key))
if not minute_tokens then
    minute_tokens = minute_limit
end

local day_tokens = tonumber(redis.call('GET', day_key))
if not day_tokens then
    day_tokens = day_limit
end

if minute_tokens > 0 and day_tokens > 0 then
    minute_tokens = minute_tokens - 1
    day_tokens = day_tokens - 1
    redis.call('SET', minute_key, minute_tokens, 'EX', minute_window)
    redis.call('SET', day_key, day_tokens, 'EX', day_window)
    return 1
else
    return 0
end
`

// RateLimiter is a Redis-backed token bucket with two independent windows
// (minute and day). Both buckets must have tokens for a request to
// proceed. Keyed by a caller-supplied prefix so multiple upstreams can be
// limited independently against the same Redis.
type RateLimiter struct {
	redis          *redis.Client
	keyPrefix      string
	callsPerMinute int
	callsPerDay    int
}

// NewRateLimiter creates a limiter. Limits must be strictly positive.
func NewRateLimiter(rdb *redis.Client, keyPrefix string, callsPerMinute, callsPerDay int) (*RateLimiter, error) {
	if callsPerMinute <= 0 {
		return nil, fmt.Errorf("callsPerMinute must be positive, got %d", callsPerMinute)
	}
	if callsPerDay <= 0 {
		return nil, fmt.Errorf("callsPerDay must be positive, got %d", callsPerDay)
	}
	return &RateLimiter{
		redis:          rdb,
		keyPrefix:      keyPrefix,
		callsPerMinute: callsPerMinute,
		callsPerDay:    callsPerDay,
	}, nil
}

func (r *RateLimiter) minuteKey() string { return r.keyPrefix + ":minute" }
func (r *RateLimiter) dayKey() string    { return r.keyPrefix + ":day" }

// tokensAt reads a bucket counter, defaulting to the full limit when the
// key is absent or unreadable.
func (r *RateLimiter) tokensAt(ctx context.Context, key string, limit int) (int, error) {
	val, err := r.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read bucket %s: %w", key, err)
	}
	tokens, err := strconv.Atoi(val)
	if err != nil {
		return limit, nil
	}
	return tokens, nil
}

// CanProceed is a read-only probe: true when both buckets have tokens. It
// never consumes; use Consume before the actual upstream call.
func (r *RateLimiter) CanProceed(ctx context.Context) (bool, error) {
	minuteTokens, err := r.tokensAt(ctx, r.minuteKey(), r.callsPerMinute)
	if err != nil {
		return false, err
	}
	dayTokens, err := r.tokensAt(ctx, r.dayKey(), r.callsPerDay)
	if err != nil {
		return false, err
	}
	return minuteTokens > 0 && dayTokens > 0, nil
}

// Consume atomically decrements both buckets. Returns true iff tokens were
// taken from both; false means at least one bucket was empty and nothing
// was consumed.
func (r *RateLimiter) Consume(ctx context.Context) (bool, error) {
	result, err := r.redis.Eval(ctx, consumeScript,
		[]string{r.minuteKey(), r.dayKey()},
		r.callsPerMinute,
		r.callsPerDay,
		int(minuteWindow.Seconds()),
		int(dayWindow.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume rate limit token: %w", err)
	}
	return result == 1, nil
}

// WaitTime returns how long until a token becomes available: zero when
// both buckets have tokens, otherwise the minimum remaining TTL among the
// exhausted buckets. A missing key refills on next write, so it counts as
// zero.
func (r *RateLimiter) WaitTime(ctx context.Context) (time.Duration, error) {
	minuteTokens, err := r.tokensAt(ctx, r.minuteKey(), r.callsPerMinute)
	if err != nil {
		return 0, err
	}
	dayTokens, err := r.tokensAt(ctx, r.dayKey(), r.callsPerDay)
	if err != nil {
		return 0, err
	}
	if minuteTokens > 0 && dayTokens > 0 {
		return 0, nil
	}

	var waits []time.Duration
	if minuteTokens <= 0 {
		ttl, err := r.redis.TTL(ctx, r.minuteKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to read minute TTL: %w", err)
		}
		if ttl > 0 {
			waits = append(waits, ttl)
		} else {
			waits = append(waits, 0)
		}
	}
	if dayTokens <= 0 {
		ttl, err := r.redis.TTL(ctx, r.dayKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to read day TTL: %w", err)
		}
		if ttl > 0 {
			waits = append(waits, ttl)
		} else {
			waits = append(waits, 0)
		}
	}

	min := waits[0]
	for _, w := range waits[1:] {
		if w < min {
			min = w
		}
	}
	return min, nil
}

// Remaining returns the current (minute, day) token counts for
// observability.
func (r *RateLimiter) Remaining(ctx context.Context) (int, int, error) {
	minuteTokens, err := r.tokensAt(ctx, r.minuteKey(), r.callsPerMinute)
	if err != nil {
		return 0, 0, err
	}
	dayTokens, err := r.tokensAt(ctx, r.dayKey(), r.callsPerDay)
	if err != nil {
		return 0, 0, err
	}
	return minuteTokens, dayTokens, nil
}
