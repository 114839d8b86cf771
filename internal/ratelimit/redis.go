package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// usageScript evaluates both axes and, when ARGV[4] is 1, increments them in
// the same script run. Times are unix milliseconds supplied by the caller.
const usageScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cap = tonumber(ARGV[3])
local commit = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local function load(key)
  local data = redis.call("HMGET", key, "credits_used", "last_reset")
  local used = tonumber(data[1]) or 0
  local reset = tonumber(data[2]) or now
  if now - reset > window then
    used = 0
    reset = now
  end
  return used, reset
end

local fpUsed, fpReset = load(KEYS[1])
local ipUsed, ipReset = load(KEYS[2])

if fpUsed >= cap then
  return {0, 1, fpUsed, ipUsed}
end
if ipUsed >= cap then
  return {0, 2, fpUsed, ipUsed}
end

if commit == 1 then
  fpUsed = fpUsed + 1
  ipUsed = ipUsed + 1
  redis.call("HSET", KEYS[1], "credits_used", fpUsed, "last_reset", fpReset, "last_used", now)
  redis.call("PEXPIRE", KEYS[1], ttl)
  redis.call("HSET", KEYS[2], "credits_used", ipUsed, "last_reset", ipReset, "last_used", now)
  redis.call("PEXPIRE", KEYS[2], ttl)
end

return {1, 0, fpUsed, ipUsed}
`

const redisKeyPrefix = "creditgate:usage:"

type RedisBackend struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	if client == nil {
		return nil
	}
	return &RedisBackend{
		client: client,
		script: redis.NewScript(usageScript),
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Check(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error) {
	return b.run(ctx, fpKey, ipKey, now, policy, false)
}

func (b *RedisBackend) Use(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error) {
	return b.run(ctx, fpKey, ipKey, now, policy, true)
}

func (b *RedisBackend) run(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy, commit bool) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errors.New("rate limiter not configured")
	}
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}

	commitArg := 0
	if commit {
		commitArg = 1
	}
	// Keys outlive the window so a reset is observable, then expire.
	ttl := 2 * policy.Window

	res, err := b.script.Run(
		ctx,
		b.client,
		[]string{redisKeyPrefix + fpKey, redisKeyPrefix + ipKey},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Cap,
		commitArg,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 4 {
		return Decision{}, errors.New("invalid rate limit script response")
	}

	if res[0] != 1 {
		reason := ReasonFingerprintLimit
		if res[1] == 2 {
			reason = ReasonIPLimit
		}
		return Decision{Reason: reason}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: remaining(int(res[2]), int(res[3]), policy.Cap),
	}, nil
}

// Usage reads the stored hash for key. It is used by diagnostics and tests.
func (b *RedisBackend) Usage(ctx context.Context, key string) (*UsageRecord, error) {
	values, err := b.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	rec := &UsageRecord{Key: key}
	rec.CreditsUsed = int(parseInt(values["credits_used"]))
	rec.LastReset = time.UnixMilli(parseInt(values["last_reset"])).UTC()
	if raw, ok := values["last_used"]; ok {
		lastUsed := time.UnixMilli(parseInt(raw)).UTC()
		rec.LastUsed = &lastUsed
	}
	return rec, nil
}

func parseInt(raw string) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
