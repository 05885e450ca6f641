package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for atomic per-minute burst limiting. Checks the counter
// before incrementing so a denied call never consumes budget.
const burstLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// BurstGuard caps sends per tenant per minute via a Redis counter.
type BurstGuard struct {
	redis  *redis.Client
	script *redis.Script
}

// NewBurstGuard creates a burst guard with a pre-compiled Lua script.
func NewBurstGuard(client *redis.Client) *BurstGuard {
	return &BurstGuard{
		redis:  client,
		script: redis.NewScript(burstLuaScript),
	}
}

// Allow atomically checks and increments the tenant's per-minute counter.
func (g *BurstGuard) Allow(ctx context.Context, tenantID string, perMinute int) (bool, error) {
	key := fmt.Sprintf("ratelimit:burst:%s:%s", tenantID, time.Now().UTC().Format("2006-01-02T15:04"))

	result, err := g.script.Run(ctx, g.redis, []string{key}, perMinute, 120).Result()
	if err != nil {
		return false, fmt.Errorf("burst guard: %w", err)
	}
	vals, ok := result.([]interface{})
	if !ok || len(vals) < 1 {
		return false, fmt.Errorf("burst guard: unexpected script result %v", result)
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1, nil
}
