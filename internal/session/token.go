// Package session carries the signed-in user between requests.
//
// The user record is serialized into an HS256 token kept in an HttpOnly
// cookie.  Reading it is local and synchronous; sensitive admin actions
// additionally check the token id against the sessions table.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/fernid/internal/model"
)

// ErrInvalidToken covers malformed, badly signed and expired tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the token payload: the registered claims plus the user blob.
type Claims struct {
	User model.User `json:"user"`
	jwt.RegisteredClaims
}

// Token is a signed session token together with its id and expiry.
type Token struct {
	Raw string
	ID  string
	Exp time.Time
}

// Issue signs a token for u that expires after ttl.
func Issue(secret string, u model.User, ttl time.Duration) (Token, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	id := uuid.NewString()
	claims := Claims{
		User: u,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return Token{}, err
	}
	return Token{Raw: signed, ID: id, Exp: exp}, nil
}

// Parse verifies raw and returns its claims.
func Parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User.ID == "" || claims.User.ID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// HashID returns the SHA-256 hex digest of a token id.  Only the digest is
// stored server side.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
