// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors themselves.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an auth identity already exists for
// the email address.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidCredentials is returned when an email/password pair does not
// match any auth identity.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionInvalid is returned for unknown, expired or revoked sessions.
var ErrSessionInvalid = errors.New("session invalid")

// ErrConflict is returned when an insert collides with an existing key.
var ErrConflict = errors.New("conflict")

// isDuplicate reports a unique-key violation from MySQL (1062) or SQLite.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
