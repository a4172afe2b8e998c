package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iliyamo/fernid/internal/model"
)

const CookieName = "fernid_session"

// ErrRevoked means the token verifies but its server-side record is gone,
// revoked or expired.
var ErrRevoked = errors.New("session revoked")

// Store persists hashed token ids.
type Store interface {
	Store(ctx context.Context, userID, tokenHash string, exp time.Time) error
	Validate(ctx context.Context, tokenHash string) (string, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// Manager issues, reads and ends sessions.
type Manager struct {
	secret string
	ttl    time.Duration
	store  Store
	secure bool
}

// NewManager returns a Manager.  secure sets the cookie Secure flag.
func NewManager(secret string, ttl time.Duration, store Store, secure bool) *Manager {
	return &Manager{secret: secret, ttl: ttl, store: store, secure: secure}
}

// Start issues a token for u and records its id.
func (m *Manager) Start(ctx context.Context, u model.User) (Token, *http.Cookie, error) {
	tok, err := Issue(m.secret, u, m.ttl)
	if err != nil {
		return Token{}, nil, err
	}
	if err := m.store.Store(ctx, u.ID, HashID(tok.ID), tok.Exp); err != nil {
		return Token{}, nil, err
	}
	return tok, m.cookie(tok.Raw, tok.Exp), nil
}

// Current reads the session from the request cookie.  It never touches
// the backend; a missing or unreadable cookie yields nil.
func (m *Manager) Current(r *http.Request) *Claims {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return nil
	}
	claims, err := Parse(m.secret, ck.Value)
	if err != nil {
		return nil
	}
	return claims
}

// Verify checks that the session behind claims is still live server side.
func (m *Manager) Verify(ctx context.Context, claims *Claims) error {
	userID, err := m.store.Validate(ctx, HashID(claims.ID))
	if err != nil {
		return errors.Join(ErrRevoked, err)
	}
	if userID != claims.Subject {
		return ErrRevoked
	}
	return nil
}

// End revokes the session behind claims, when present, and returns a
// cookie that clears it in the browser.  The revoke error is returned for
// logging; the cookie is valid either way.
func (m *Manager) End(ctx context.Context, claims *Claims) (*http.Cookie, error) {
	var err error
	if claims != nil {
		err = m.store.Revoke(ctx, HashID(claims.ID))
	}
	ck := m.cookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	return ck, err
}

func (m *Manager) cookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
