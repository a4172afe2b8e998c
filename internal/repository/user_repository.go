package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/fernid/internal/utils"
)

// Identity mirrors the 'auth_identities' table: the credential half of an
// account.  The profile half lives in 'profiles' and may be missing.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type IdentityRepo struct{ DB *sql.DB }

func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{DB: db} }

// Create inserts an identity and returns it.
func (r *IdentityRepo) Create(ctx context.Context, email, password string, cost int) (Identity, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO auth_identities (id, email, password_hash, created_at) VALUES (?,?,?,?)",
		id.ID, id.Email, id.PasswordHash, id.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return Identity{}, ErrEmailExists
		}
		return Identity{}, err
	}
	return id, nil
}

// GetByEmail fetches an identity by normalized email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (Identity, error) {
	var id Identity
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at FROM auth_identities WHERE email=? LIMIT 1",
		normalizeEmail(email)).Scan(&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	return id, err
}

// Authenticate returns the identity for email if password matches its
// hash.  Unknown emails and wrong passwords both yield
// ErrInvalidCredentials.
func (r *IdentityRepo) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	id, err := r.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, err
	}
	if !utils.VerifyPassword(id.PasswordHash, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
