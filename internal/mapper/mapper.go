package mapper

import (
	"database/sql"
	"time"

	"github.com/iliyamo/fernid/internal/model"
)

// ProfileRow mirrors the 'profiles' table.
type ProfileRow struct {
	ID               string
	Username         string
	Email            string
	Role             string
	CreatedAt        time.Time
	ProfilePicture   sql.NullString
	AdminPermissions NullPermissions
}

// SpeciesRow mirrors the 'fern_species' table.
type SpeciesRow struct {
	Slug             string
	CommonName       string
	ScientificName   string
	Description      string
	Habitat          string
	CareRequirements string
	FunFacts         StringList
}

// ScanRow mirrors the 'scans' table.  Species holds the LEFT JOINed
// fern_species row and is nil when the join produced nothing.
type ScanRow struct {
	ID          string
	UserID      string
	ImageURL    string
	IsPlant     bool
	IsFern      bool
	SpeciesSlug sql.NullString
	Confidence  float64
	CreatedAt   time.Time
	Species     *SpeciesRow
}

// ToUser builds a User from a profile row.
func ToUser(r ProfileRow) model.User {
	u := model.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Role:      model.NormalizeRole(r.Role),
		CreatedAt: r.CreatedAt,
	}
	if r.ProfilePicture.Valid && r.ProfilePicture.String != "" {
		u.ProfilePicture = r.ProfilePicture.String
	}
	if r.AdminPermissions.Valid {
		p := r.AdminPermissions.Permissions
		u.AdminPermissions = &p
	}
	return u
}

// FromUser is the inverse of ToUser.
func FromUser(u model.User) ProfileRow {
	r := ProfileRow{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(model.NormalizeRole(string(u.Role))),
		CreatedAt: u.CreatedAt,
	}
	if u.ProfilePicture != "" {
		r.ProfilePicture = sql.NullString{String: u.ProfilePicture, Valid: true}
	}
	if u.AdminPermissions != nil {
		r.AdminPermissions = NullPermissions{Permissions: *u.AdminPermissions, Valid: true}
	}
	return r
}

// ToFernDetails copies a species row into the domain shape.
func ToFernDetails(r SpeciesRow) model.FernDetails {
	return model.FernDetails{
		CommonName:       r.CommonName,
		ScientificName:   r.ScientificName,
		Description:      r.Description,
		Habitat:          r.Habitat,
		CareRequirements: r.CareRequirements,
		FunFacts:         cloneStrings(r.FunFacts),
	}
}

// FromFernDetails is the inverse of ToFernDetails; the slug travels
// separately because FernDetails does not carry it.
func FromFernDetails(slug string, d model.FernDetails) SpeciesRow {
	return SpeciesRow{
		Slug:             slug,
		CommonName:       d.CommonName,
		ScientificName:   d.ScientificName,
		Description:      d.Description,
		Habitat:          d.Habitat,
		CareRequirements: d.CareRequirements,
		FunFacts:         StringList(cloneStrings(d.FunFacts)),
	}
}

// ToScanResult builds a ScanResult, attaching details only when a species
// row was joined in.
func ToScanResult(r ScanRow) model.ScanResult {
	s := model.ScanResult{
		ID:         r.ID,
		UserID:     r.UserID,
		Image:      r.ImageURL,
		IsPlant:    r.IsPlant,
		IsFern:     r.IsFern,
		Confidence: r.Confidence,
		Timestamp:  r.CreatedAt,
	}
	if r.SpeciesSlug.Valid {
		s.Species = r.SpeciesSlug.String
	}
	if r.Species != nil {
		d := ToFernDetails(*r.Species)
		s.Details = &d
	}
	return s
}

// FromScanResult is the inverse of ToScanResult.
func FromScanResult(s model.ScanResult) ScanRow {
	r := ScanRow{
		ID:         s.ID,
		UserID:     s.UserID,
		ImageURL:   s.Image,
		IsPlant:    s.IsPlant,
		IsFern:     s.IsFern,
		Confidence: s.Confidence,
		CreatedAt:  s.Timestamp,
	}
	if s.Species != "" {
		r.SpeciesSlug = sql.NullString{String: s.Species, Valid: true}
	}
	if s.Details != nil {
		sp := FromFernDetails(s.Species, *s.Details)
		r.Species = &sp
	}
	return r
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
