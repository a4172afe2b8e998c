// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/fernid/internal/classifier"
)

// Config holds all runtime configuration values.  Backend connection
// settings are not here: the gateway reads them itself on first use.
type Config struct {
	Env                    string        // application environment (dev, test, prod)
	Port                   string        // HTTP port to listen on
	JWTSecret              string        // secret used to sign session tokens
	SessionTTL             time.Duration // session lifetime
	BcryptCost             int           // bcrypt cost for password hashing
	ScanDelay              time.Duration // simulated classifier delay
	LegacyAdminFullAccess  bool          // admins without stored permissions get every capability
	RequestTimeout         time.Duration // per-request backend deadline
	RabbitURL              string        // activity queue broker; empty disables publishing
	ActivityLogPath        string        // consumer output file
}

// Load reads the configuration.  Every missing required variable is
// reported in one error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}
	cfg := Config{
		Env:                   must("APP_ENV"),
		Port:                  must("APP_PORT"),
		JWTSecret:             must("JWT_SECRET"),
		SessionTTL:            time.Duration(envInt("SESSION_TTL_MIN", 1440)) * time.Minute,
		BcryptCost:            envInt("BCRYPT_COST", 10),
		ScanDelay:             envDur("SCAN_DELAY", classifier.DefaultDelay),
		// Also covers admins made via a bare role change, which never
		// writes permissions.
		LegacyAdminFullAccess: envBool("LEGACY_ADMIN_FULL_ACCESS", true),
		RequestTimeout:        envDur("REQUEST_TIMEOUT", 5*time.Second),
		RabbitURL:             os.Getenv("RABBITMQ_URL"),
		ActivityLogPath:       envStr("ACTIVITY_LOG_PATH", "logs/activity.log"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env var(s): %s", strings.Join(missing, ", "))
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL_MIN: must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return cfg, nil
}

// IsProd reports whether cookies should be marked Secure.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
