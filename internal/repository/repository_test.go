package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/testutil"
)

func TestIdentityRepo_CreateAndAuthenticate(t *testing.T) {
	d := testutil.OpenDB(t)
	repo := NewIdentityRepo(d)
	ctx := context.Background()

	id, err := repo.Create(ctx, "  Jane@Example.com ", "hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "jane@example.com", id.Email)

	_, err = repo.Create(ctx, "jane@example.com", "another1", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := repo.Authenticate(ctx, "JANE@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)

	_, err = repo.Authenticate(ctx, "jane@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfileRepo_CRUD(t *testing.T) {
	d := testutil.OpenDB(t)
	repo := NewProfileRepo(d)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := mapper.ProfileRow{ID: "u-old", Username: "old", Email: "old@x.io", Role: "user", CreatedAt: base}
	newer := mapper.ProfileRow{ID: "u-new", Username: "new", Email: "new@x.io", Role: "user", CreatedAt: base.Add(time.Hour),
		ProfilePicture: sql.NullString{String: "https://cdn/p.png", Valid: true}}
	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))
	assert.ErrorIs(t, repo.Insert(ctx, older), ErrConflict)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u-new", list[0].ID, "newest first")
	assert.Equal(t, "https://cdn/p.png", list[0].ProfilePicture.String)

	require.NoError(t, repo.SetAdmin(ctx, "u-old", model.AdminPermissions{ViewAnalytics: true}))
	got, err := repo.GetByID(ctx, "u-old")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	assert.True(t, got.AdminPermissions.Valid)
	assert.Equal(t, model.AdminPermissions{ViewAnalytics: true}, got.AdminPermissions.Permissions)

	require.NoError(t, repo.UpdateRole(ctx, "u-old", model.RoleUser))
	got, _ = repo.GetByID(ctx, "u-old")
	assert.Equal(t, "user", got.Role)
	assert.True(t, got.AdminPermissions.Valid, "role change keeps stored permissions")

	require.NoError(t, repo.SetUser(ctx, "u-old"))
	got, _ = repo.GetByID(ctx, "u-old")
	assert.False(t, got.AdminPermissions.Valid)

	require.NoError(t, repo.UpdateDetails(ctx, "u-new", "renamed", ""))
	got, _ = repo.GetByID(ctx, "u-new")
	assert.Equal(t, "renamed", got.Username)
	assert.Equal(t, "https://cdn/p.png", got.ProfilePicture.String)

	assert.ErrorIs(t, repo.UpdateRole(ctx, "missing", model.RoleAdmin), ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "u-new"))
	_, err = repo.GetByID(ctx, "u-new")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "u-new"), ErrNotFound)
}

func seedSpecies(t *testing.T, repo *SpeciesRepo, slug, common string) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), mapper.SpeciesRow{
		Slug: slug, CommonName: common, ScientificName: common + " sp.",
		Description: "d", Habitat: "h", CareRequirements: "c",
		FunFacts: mapper.StringList{"fact one", "fact two"},
	}))
}

func TestSpeciesRepo_OrderedByCommonName(t *testing.T) {
	d := testutil.OpenDB(t)
	repo := NewSpeciesRepo(d)
	ctx := context.Background()

	seedSpecies(t, repo, "staghorn-fern", "Staghorn Fern")
	seedSpecies(t, repo, "asparagus-fern", "Asparagus Fern")
	seedSpecies(t, repo, "boston-fern", "Boston Fern")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Asparagus Fern", "Boston Fern", "Staghorn Fern"},
		[]string{list[0].CommonName, list[1].CommonName, list[2].CommonName})
	assert.Equal(t, mapper.StringList{"fact one", "fact two"}, list[0].FunFacts)

	err = repo.Insert(ctx, mapper.SpeciesRow{Slug: "boston-fern", CommonName: "dup"})
	assert.ErrorIs(t, err, ErrConflict)

	upd := list[1]
	upd.Habitat = "Swamps"
	upd.FunFacts = nil
	require.NoError(t, repo.Update(ctx, upd))
	got, err := repo.Get(ctx, "boston-fern")
	require.NoError(t, err)
	assert.Equal(t, "Swamps", got.Habitat)
	assert.Empty(t, got.FunFacts)

	assert.ErrorIs(t, repo.Update(ctx, mapper.SpeciesRow{Slug: "nope"}), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "boston-fern"))
	assert.ErrorIs(t, repo.Delete(ctx, "boston-fern"), ErrNotFound)
}

func TestScanRepo_JoinOrderAndDelete(t *testing.T) {
	d := testutil.OpenDB(t)
	scans := NewScanRepo(d)
	species := NewSpeciesRepo(d)
	ctx := context.Background()
	seedSpecies(t, species, "boston-fern", "Boston Fern")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fern, err := scans.Insert(ctx, mapper.ScanRow{
		ID: "s1", UserID: "u1", ImageURL: "data:image/png;base64,AA", IsPlant: true, IsFern: true,
		SpeciesSlug: sql.NullString{String: "boston-fern", Valid: true}, Confidence: 0.9, CreatedAt: base,
	})
	require.NoError(t, err)
	require.NotNil(t, fern.Species)
	assert.Equal(t, "Boston Fern", fern.Species.CommonName)
	assert.True(t, fern.IsFern)
	assert.True(t, fern.CreatedAt.Equal(base))

	plant, err := scans.Insert(ctx, mapper.ScanRow{
		ID: "s2", UserID: "u1", ImageURL: "img2", IsPlant: true, Confidence: 0.82, CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Nil(t, plant.Species)
	assert.False(t, plant.SpeciesSlug.Valid)

	_, err = scans.Insert(ctx, mapper.ScanRow{ID: "s3", UserID: "u2", ImageURL: "img3", Confidence: 0.75, CreatedAt: base})
	require.NoError(t, err)

	mine, err := scans.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "s2", mine[0].ID, "newest first")

	all, err := scans.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := scans.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, scans.Delete(ctx, "s3"))
	assert.ErrorIs(t, scans.Delete(ctx, "s3"), ErrNotFound)
	_, err = scans.GetByID(ctx, "s3")
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := scans.DeleteByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	d := testutil.OpenDB(t)
	repo := NewSessionRepo(d)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, "u1", "hash-a", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Store(ctx, "u1", "hash-b", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Store(ctx, "u1", "hash-old", time.Now().Add(-time.Hour)))

	uid, err := repo.Validate(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = repo.Validate(ctx, "hash-old")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = repo.Validate(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	require.NoError(t, repo.Revoke(ctx, "hash-a"))
	_, err = repo.Validate(ctx, "hash-a")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))
	_, err = repo.Validate(ctx, "hash-b")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
