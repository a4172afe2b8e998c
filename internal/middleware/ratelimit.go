package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/config"
)

// tokenBucketScript refills the bucket in whole intervals, takes one
// token if available and returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// signInPaths are the credential-checking posts.  They share one small
// bucket per client address so password guessing is throttled no matter
// which form is used.
var signInPaths = map[string]bool{
	"/login":       true,
	"/admin/login": true,
	"/register":    true,
}

var errScriptResult = errors.New("unexpected script result")

type verdict struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// take runs the bucket script for key.
func take(ctx context.Context, rdb *redis.Client, key string, b config.Bucket, ttl time.Duration) (verdict, error) {
	res, err := tokenBucketScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(), b.Capacity, b.Refill, b.Every.Milliseconds(), int64(ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(res) != 3 {
		return verdict{}, errScriptResult
	}
	return verdict{allowed: res[0] == 1, remaining: res[1], retry: time.Duration(res[2]) * time.Millisecond}, nil
}

// NewTokenBucket limits requests per key.  It is a no-op without Redis,
// and a Redis error lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket, key, msg := cfg.General, rateKey(cfg, c), "too many requests"
			if c.Request().Method == http.MethodPost && signInPaths[c.Path()] {
				bucket, key, msg = cfg.SignIn, signInKey(cfg, c), "Too many attempts. Please wait a moment and try again."
			}

			v, err := take(c.Request().Context(), rdb, key, bucket, cfg.TTL)
			if err != nil {
				log.Warn("ratelimit: redis error", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if v.allowed {
				return next(c)
			}

			secs := int(math.Ceil(v.retry.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug("ratelimit: blocked", zap.String("key", key), zap.Duration("retry", v.retry))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": msg, "retry_after": secs})
		}
	}
}

func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func signInKey(cfg config.RateLimitConfig, c echo.Context) string {
	return cfg.Prefix + ":signin:" + clientIP(c)
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip, uid := clientIP(c), currentUserID(c)
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
