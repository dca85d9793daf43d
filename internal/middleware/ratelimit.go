package middleware

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cohortboard/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter takes one token for key.
type Limiter interface {
	Take(ctx context.Context, key string) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter shares buckets between server instances.
type RedisLimiter struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func NewRedisLimiter(rdb *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, cfg: cfg}
}

func (l *RedisLimiter) Take(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	vals, err := tokenBucketScript.Run(ctx, l.rdb, []string{key},
		time.Now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillEvery.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result: %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// MemoryLimiter is the single-process fallback when redis is not configured.
type MemoryLimiter struct {
	cfg     config.RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryLimiter(cfg config.RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Take(_ context.Context, key string) (bool, int64, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.lastRefill) > l.cfg.TTL {
		b = &bucket{tokens: l.cfg.Capacity, lastRefill: now}
		l.buckets[key] = b
	}
	if intervals := int(now.Sub(b.lastRefill) / l.cfg.RefillEvery); intervals > 0 {
		b.tokens = min(l.cfg.Capacity, b.tokens+intervals)
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * l.cfg.RefillEvery)
	}

	if b.tokens > 0 {
		b.tokens--
		return true, int64(b.tokens), 0, nil
	}
	return false, 0, l.cfg.RefillEvery - now.Sub(b.lastRefill), nil
}

// NewLimiter picks redis when a client is available.
func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) Limiter {
	if rdb != nil {
		return NewRedisLimiter(rdb, cfg)
	}
	return NewMemoryLimiter(cfg)
}

// RateLimit throttles a route per client IP and, when logged in, per user.
// Limiter errors let the request through.
func RateLimit(cfg config.RateLimitConfig, limiter Limiter, scope string) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := rateKey(cfg.Prefix, scope, c)
		allowed, remaining, retry, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			log.Printf("[ratelimit] limiter error for key=%s: %v", key, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 0 {
				secs = 0
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "too_many_requests",
				"message":     "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.",
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}

func rateKey(prefix, scope string, c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{prefix, scope, "ip", ip}
	if u := CurrentUser(c); u != nil {
		parts = append(parts, "user", u.ID)
	}
	return strings.Join(parts, ":")
}
