// Package gateway owns the single process-wide handle to the hosted
// backend: the relational database and the avatar object store.  The
// handle is built lazily on first use from two required settings and then
// reused for the lifetime of the process.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/database"
	"github.com/iliyamo/fernid/internal/storage"
)

const (
	EnvURL = "BACKEND_URL"
	EnvKey = "BACKEND_KEY"
)

// ErrConfig reports missing or unusable connection settings.  It is fatal:
// callers must surface it and must not retry.
var ErrConfig = errors.New("backend configuration error")

// Client is the configured backend handle.  Avatars is nil when no
// bucket is configured.
type Client struct {
	DB      *sql.DB
	Avatars *storage.AvatarStore
}

// Close releases the database pool.
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// Settings are the two required connection strings.
type Settings struct {
	URL string // MySQL DSN without password, e.g. fern@tcp(db:3306)/fernid
	Key string // access key, used as the database password
}

// Opener builds a Client from validated settings.
type Opener func(ctx context.Context, s Settings) (*Client, error)

// Provider hands out one Client per process.  A failed construction is
// not cached, so the error is reported again on the next call.
type Provider struct {
	lookup func(string) string
	open   Opener

	mu     sync.Mutex
	client *Client
}

// NewProvider returns a Provider that reads settings through lookup and
// builds the client with open.
func NewProvider(lookup func(string) string, open Opener) *Provider {
	return &Provider{lookup: lookup, open: open}
}

// Client returns the cached handle, constructing it on first use.
func (p *Provider) Client(ctx context.Context) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	s := Settings{
		URL: strings.TrimSpace(p.lookup(EnvURL)),
		Key: strings.TrimSpace(p.lookup(EnvKey)),
	}
	var missing []string
	if s.URL == "" {
		missing = append(missing, EnvURL)
	}
	if s.Key == "" {
		missing = append(missing, EnvKey)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}
	c, err := p.open(ctx, s)
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

// Default is the process-wide provider backed by the environment.  It
// logs through zap's global logger.
var Default = NewProvider(os.Getenv, OpenMySQL(nil))

// DSN merges the access key into the configured URL as the password and
// forces the connection options the repositories rely on.
func DSN(s Settings) (string, error) {
	cfg, err := mysql.ParseDSN(s.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConfig, EnvURL, err)
	}
	cfg.Passwd = s.Key
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	return cfg.FormatDSN(), nil
}

// OpenMySQL returns the production Opener: a MySQL pool plus, when
// AVATAR_BUCKET is set, the S3 avatar store.  A nil log means zap.L()
// at open time.
func OpenMySQL(log *zap.Logger) Opener {
	return func(ctx context.Context, s Settings) (*Client, error) {
		if log == nil {
			log = zap.L()
		}
		dsn, err := DSN(s)
		if err != nil {
			return nil, err
		}
		db, err := database.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		c := &Client{DB: db}
		sc := storage.LoadConfig()
		if sc.Bucket == "" {
			log.Warn("AVATAR_BUCKET not set; profile picture uploads are disabled")
			return c, nil
		}
		c.Avatars, err = storage.NewAvatarStore(ctx, sc)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("avatar store: %w", err)
		}
		return c, nil
	}
}
