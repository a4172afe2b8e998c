package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fernid/internal/mapper"
)

// ScanRepo provides CRUD operations for scans.  Reads LEFT JOIN the
// species row so callers receive the details snapshot alongside the scan.
// All timestamp fields are assumed to be stored in UTC.
type ScanRepo struct {
	db *sql.DB
}

// NewScanRepo returns a new ScanRepo bound to the given database.
func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{db: db} }

const scanSelect = `SELECT s.id, s.user_id, s.image_url, s.is_plant, s.is_fern, s.species_slug,
	   s.confidence, s.created_at,
	   f.slug, f.common_name, f.scientific_name, f.description, f.habitat,
	   f.care_requirements, f.fun_facts
  FROM scans s
  LEFT JOIN fern_species f ON f.slug = s.species_slug`

// Insert stores a scan and reads it back with its joined species.
func (r *ScanRepo) Insert(ctx context.Context, s mapper.ScanRow) (mapper.ScanRow, error) {
	const q = `INSERT INTO scans (id, user_id, image_url, is_plant, is_fern, species_slug, confidence, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.UserID, s.ImageURL, s.IsPlant, s.IsFern,
		s.SpeciesSlug, s.Confidence, s.CreatedAt.UTC()); err != nil {
		return mapper.ScanRow{}, err
	}
	return r.GetByID(ctx, s.ID)
}

// GetByID fetches one scan or returns ErrNotFound.
func (r *ScanRepo) GetByID(ctx context.Context, id string) (mapper.ScanRow, error) {
	row, err := scanScan(r.db.QueryRowContext(ctx, scanSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return mapper.ScanRow{}, ErrNotFound
	}
	return row, err
}

// ListByUser returns a user's scans newest first.
func (r *ScanRepo) ListByUser(ctx context.Context, userID string) ([]mapper.ScanRow, error) {
	return r.list(ctx, scanSelect+` WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id`, userID)
}

// ListAll returns every scan newest first.
func (r *ScanRepo) ListAll(ctx context.Context) ([]mapper.ScanRow, error) {
	return r.list(ctx, scanSelect+` ORDER BY s.created_at DESC, s.id`)
}

// CountByUser returns how many scans a user owns.
func (r *ScanRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Delete removes one scan.  Deleting a missing scan returns ErrNotFound.
func (r *ScanRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes all scans owned by userID and returns how many
// rows were deleted.
func (r *ScanRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ScanRepo) list(ctx context.Context, q string, args ...any) ([]mapper.ScanRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mapper.ScanRow
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanScan reads one joined row.  The species columns are all NULL when
// the join found nothing.
func scanScan(s rowScanner) (mapper.ScanRow, error) {
	var (
		row                                    mapper.ScanRow
		slug, common, scientific, description sql.NullString
		habitat, care                         sql.NullString
		facts                                 mapper.StringList
	)
	err := s.Scan(&row.ID, &row.UserID, &row.ImageURL, &row.IsPlant, &row.IsFern, &row.SpeciesSlug,
		&row.Confidence, &row.CreatedAt,
		&slug, &common, &scientific, &description, &habitat, &care, &facts)
	if err != nil {
		return mapper.ScanRow{}, err
	}
	if slug.Valid {
		row.Species = &mapper.SpeciesRow{
			Slug:             slug.String,
			CommonName:       common.String,
			ScientificName:   scientific.String,
			Description:      description.String,
			Habitat:          habitat.String,
			CareRequirements: care.String,
			FunFacts:         facts,
		}
	}
	return row, nil
}
