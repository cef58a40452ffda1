package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// tokenBucketScript refills the bucket for the time elapsed since the last
// call, then takes one token if available. Time comes from the caller so
// tests can drive it with a fake clock.
// ARGV: [1]=now_ms, [2]=capacity, [3]=window_ms
var tokenBucketScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last = tonumber(redis.call('HGET', KEYS[1], 'last_refill'))
if tokens == nil or last == nil then
	tokens = capacity
	last = now
end

local elapsed = math.max(0, now - last)
tokens = math.min(capacity, tokens + elapsed * capacity / window)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', tostring(now))
redis.call('PEXPIRE', KEYS[1], window * 2)
return allowed
`)

var _ domain.VoteRateLimiter = (*VoteRateLimiter)(nil)

// VoteRateLimiter is a per-user token bucket: up to capacity votes at once,
// refilled at capacity per window.
type VoteRateLimiter struct {
	rdb      *goredis.Client
	clock    clockwork.Clock
	capacity int
	window   time.Duration
}

func NewVoteRateLimiter(rdb *goredis.Client, clock clockwork.Clock, capacity int, window time.Duration) *VoteRateLimiter {
	return &VoteRateLimiter{
		rdb:      rdb,
		clock:    clock,
		capacity: capacity,
		window:   window,
	}
}

// AllowVote reports whether userID may vote now, consuming one token.
func (v *VoteRateLimiter) AllowVote(ctx context.Context, userID int64) (bool, error) {
	allowed, err := tokenBucketScript.Run(ctx, v.rdb, []string{rateLimitKey(userID)},
		strconv.FormatInt(v.clock.Now().UnixMilli(), 10),
		strconv.Itoa(v.capacity),
		strconv.FormatInt(v.window.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}

func rateLimitKey(userID int64) string {
	return "rate_limit:votes:" + strconv.FormatInt(userID, 10)
}
