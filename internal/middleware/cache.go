package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/config"
)

// teeWriter forwards the response and keeps a copy of the body until it
// grows past limit.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// ResponseCache keeps successful catalog responses in Redis hashes under
// "<prefix>:<generation>:<path>?<query>".  Invalidation bumps the
// generation; stale entries age out through their TTL.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log *zap.Logger
}

// NewResponseCache returns a cache; with rdb nil or caching disabled its
// middlewares pass requests straight through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) genKey() string { return rc.cfg.Prefix + ":gen" }

func (rc *ResponseCache) generation(ctx context.Context) (string, error) {
	gen, err := rc.rdb.Get(ctx, rc.genKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// entryKey names the cache entry for r.  Query parameters are encoded in
// sorted order so equivalent URLs share an entry.
func entryKey(prefix, gen string, r *http.Request) string {
	return prefix + ":" + gen + ":" + r.URL.Path + "?" + r.URL.Query().Encode()
}

// Middleware serves hits from Redis and stores 200 responses whose body
// fits MaxBodyBytes.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := rc.generation(ctx)
			if err != nil {
				rc.log.Warn("cache: generation lookup failed", zap.Error(err))
				return next(c)
			}
			key := entryKey(rc.cfg.Prefix, gen, c.Request())

			if hit, err := rc.rdb.HGetAll(ctx, key).Result(); err == nil && len(hit) > 0 {
				status, _ := strconv.Atoi(hit["status"])
				if status == 0 {
					status = http.StatusOK
				}
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(status, hit["type"], []byte(hit["body"]))
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.overflow {
				return nil
			}
			entry := map[string]any{
				"status": tw.status,
				"type":   c.Response().Header().Get(echo.HeaderContentType),
				"body":   tw.buf.String(),
			}
			wctx := context.WithoutCancel(ctx)
			_, err = rc.rdb.TxPipelined(wctx, func(p redis.Pipeliner) error {
				p.HSet(wctx, key, entry)
				p.Expire(wctx, key, rc.cfg.TTL)
				return nil
			})
			if err != nil {
				rc.log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// Invalidate retires every cached response.
func (rc *ResponseCache) Invalidate(ctx context.Context) error {
	if !rc.enabled() {
		return nil
	}
	return rc.rdb.Incr(ctx, rc.genKey()).Err()
}

// InvalidateOnSuccess retires the cache after a handler answered with a
// 2xx status.
func (rc *ResponseCache) InvalidateOnSuccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status/100 == 2 {
				if ierr := rc.Invalidate(context.WithoutCancel(c.Request().Context())); ierr != nil {
					rc.log.Warn("cache: invalidate failed", zap.Error(ierr))
				}
			}
			return err
		}
	}
}
