package config

import "time"

// Bucket sizes one token bucket: Capacity tokens, refilled by Refill
// every Every.
type Bucket struct {
	Capacity int
	Refill   int
	Every    time.Duration
}

// RateLimitConfig drives the Redis rate limiter.  General applies to
// every route; SignIn replaces it on the sign-in and registration posts
// and is keyed by client address only.
type RateLimitConfig struct {
	Enabled     bool
	General     Bucket
	SignIn      Bucket
	TTL         time.Duration
	KeyStrategy string // ip, user, ip_user or ip_user_route
	Prefix      string
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		General: Bucket{
			Capacity: envInt("RATE_LIMIT_CAPACITY", 60),
			Refill:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
			Every:    envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		},
		SignIn: Bucket{
			Capacity: envInt("RATE_LIMIT_SIGNIN_CAPACITY", 5),
			Refill:   1,
			Every:    envDur("RATE_LIMIT_SIGNIN_INTERVAL", time.Minute),
		},
		TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	cfg.General = cfg.General.clamped()
	cfg.SignIn = cfg.SignIn.clamped()
	// Keys must outlive a full refill of the slower bucket.
	slowest := max(cfg.General.Every, cfg.SignIn.Every)
	if cfg.TTL < 5*slowest {
		cfg.TTL = 5 * slowest
	}
	return cfg
}

func (b Bucket) clamped() Bucket {
	b.Capacity = max(b.Capacity, 1)
	b.Refill = max(b.Refill, 1)
	if b.Every <= 0 {
		b.Every = time.Second
	}
	return b
}
