package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fernid/internal/mapper"
)

const speciesColumns = "slug, common_name, scientific_name, description, habitat, care_requirements, fun_facts"

// SpeciesRepo provides CRUD over 'fern_species'.  Species are keyed by
// their slug.
type SpeciesRepo struct {
	db *sql.DB
}

// NewSpeciesRepo returns a new SpeciesRepo bound to the given database.
func NewSpeciesRepo(db *sql.DB) *SpeciesRepo { return &SpeciesRepo{db: db} }

// List returns all species ordered by common name ascending.
func (r *SpeciesRepo) List(ctx context.Context) ([]mapper.SpeciesRow, error) {
	const q = `SELECT ` + speciesColumns + ` FROM fern_species ORDER BY common_name ASC, slug ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mapper.SpeciesRow
	for rows.Next() {
		var s mapper.SpeciesRow
		if err := rows.Scan(&s.Slug, &s.CommonName, &s.ScientificName, &s.Description,
			&s.Habitat, &s.CareRequirements, &s.FunFacts); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one species by slug or returns ErrNotFound.
func (r *SpeciesRepo) Get(ctx context.Context, slug string) (mapper.SpeciesRow, error) {
	const q = `SELECT ` + speciesColumns + ` FROM fern_species WHERE slug = ?`
	var s mapper.SpeciesRow
	err := r.db.QueryRowContext(ctx, q, slug).Scan(&s.Slug, &s.CommonName, &s.ScientificName,
		&s.Description, &s.Habitat, &s.CareRequirements, &s.FunFacts)
	if errors.Is(err, sql.ErrNoRows) {
		return mapper.SpeciesRow{}, ErrNotFound
	}
	return s, err
}

// Insert adds a species.  An existing slug yields ErrConflict.
func (r *SpeciesRepo) Insert(ctx context.Context, s mapper.SpeciesRow) error {
	const q = `INSERT INTO fern_species (` + speciesColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, s.Slug, s.CommonName, s.ScientificName,
		s.Description, s.Habitat, s.CareRequirements, s.FunFacts)
	if err != nil && isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Update replaces every descriptive field of the species with s.Slug.
func (r *SpeciesRepo) Update(ctx context.Context, s mapper.SpeciesRow) error {
	const q = `UPDATE fern_species
	           SET common_name = ?, scientific_name = ?, description = ?, habitat = ?,
	               care_requirements = ?, fun_facts = ?
	           WHERE slug = ?`
	res, err := r.db.ExecContext(ctx, q, s.CommonName, s.ScientificName, s.Description,
		s.Habitat, s.CareRequirements, s.FunFacts, s.Slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, s.Slug); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a species.  Scans referencing it keep their slug and
// simply lose the joined details.
func (r *SpeciesRepo) Delete(ctx context.Context, slug string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fern_species WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
