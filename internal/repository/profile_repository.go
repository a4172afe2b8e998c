package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
)

const profileColumns = "id, username, email, role, created_at, profile_picture, admin_permissions"

// ProfileRepo encapsulates all queries against 'profiles'.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo constructs a ProfileRepo with the provided DB handle.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Insert writes a new profile row.  A row with the same id yields
// ErrConflict.
func (r *ProfileRepo) Insert(ctx context.Context, p mapper.ProfileRow) error {
	const q = `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.Username, p.Email, p.Role, p.CreatedAt.UTC(), p.ProfilePicture, p.AdminPermissions)
	if err != nil && isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByID fetches a profile.  It returns ErrNotFound if no row matches.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (mapper.ProfileRow, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	p, err := scanProfile(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return mapper.ProfileRow{}, ErrNotFound
	}
	return p, err
}

// List returns every profile, newest first.
func (r *ProfileRepo) List(ctx context.Context) ([]mapper.ProfileRow, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mapper.ProfileRow
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole sets the role column only; stored permissions are untouched.
func (r *ProfileRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return r.execOne(ctx, `UPDATE profiles SET role = ? WHERE id = ?`, string(role), id)
}

// SetAdmin sets role=admin and replaces the whole permissions object in a
// single statement.
func (r *ProfileRepo) SetAdmin(ctx context.Context, id string, perms model.AdminPermissions) error {
	col := mapper.NullPermissions{Permissions: perms, Valid: true}
	return r.execOne(ctx, `UPDATE profiles SET role = ?, admin_permissions = ? WHERE id = ?`,
		string(model.RoleAdmin), col, id)
}

// SetUser sets role=user and clears the permissions object.
func (r *ProfileRepo) SetUser(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE profiles SET role = ?, admin_permissions = NULL WHERE id = ?`,
		string(model.RoleUser), id)
}

// UpdateDetails changes the username and, when picture is non-empty, the
// profile picture URL.
func (r *ProfileRepo) UpdateDetails(ctx context.Context, id, username, picture string) error {
	if picture == "" {
		return r.execOne(ctx, `UPDATE profiles SET username = ? WHERE id = ?`, username, id)
	}
	return r.execOne(ctx, `UPDATE profiles SET username = ?, profile_picture = ? WHERE id = ?`,
		username, picture, id)
}

// Delete removes a profile row.  Scans must be removed first.
func (r *ProfileRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM profiles WHERE id = ?`, id)
}

// execOne runs a single-row write and maps "no row affected" to
// ErrNotFound.  MySQL reports 0 affected rows for an UPDATE that changes
// nothing, so a no-op update of an existing row is confirmed with a
// follow-up existence check.
func (r *ProfileRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	id := args[len(args)-1]
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (mapper.ProfileRow, error) {
	var p mapper.ProfileRow
	err := s.Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.CreatedAt, &p.ProfilePicture, &p.AdminPermissions)
	return p, err
}
