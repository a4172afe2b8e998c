package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/repository"
)

func fern(slug string) model.Classification {
	return model.Classification{IsPlant: true, IsFern: true, Species: slug, Confidence: 0.9}
}

func TestPromoteUser_WritesAllFourKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "janedoe", "jane@example.com")

	ok := f.admin().PromoteUser(ctx, u.ID, map[model.Capability]bool{model.CapViewAnalytics: true})
	require.True(t, ok)

	var raw string
	require.NoError(t, f.db.QueryRow("SELECT admin_permissions FROM profiles WHERE id=?", u.ID).Scan(&raw))
	assert.JSONEq(t, `{"manageUsers":false,"manageContent":false,"viewAnalytics":true,"systemSettings":false}`, raw)

	got := f.admin().GetUser(ctx, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.True(t, got.Can(model.CapViewAnalytics, true))
	assert.False(t, got.Can(model.CapManageUsers, true))
}

func TestDemoteAndUpdateRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.admin()
	u := f.register(t, "janedoe", "jane@example.com")
	require.True(t, a.PromoteUser(ctx, u.ID, map[model.Capability]bool{model.CapManageUsers: true}))

	require.True(t, a.UpdateUserRole(ctx, u.ID, model.RoleUser))
	got := a.GetUser(ctx, u.ID)
	assert.Equal(t, model.RoleUser, got.Role)
	require.NotNil(t, got.AdminPermissions, "role change keeps permissions")

	require.True(t, a.UpdateUserRole(ctx, u.ID, model.RoleAdmin))
	assert.True(t, a.GetUser(ctx, u.ID).Can(model.CapManageUsers, false))

	require.True(t, a.DemoteUser(ctx, u.ID))
	got = a.GetUser(ctx, u.ID)
	assert.Equal(t, model.RoleUser, got.Role)
	assert.Nil(t, got.AdminPermissions)

	assert.False(t, a.DemoteUser(ctx, "missing"))
	assert.False(t, a.PromoteUser(ctx, "missing", nil))
}

// A role change never writes permissions, so raising a user who has none
// yields a legacy admin whose access follows LEGACY_ADMIN_FULL_ACCESS.
func TestUpdateRole_AdminWithoutPermissionsIsLegacy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.admin()
	u := f.register(t, "janedoe", "jane@example.com")

	require.True(t, a.UpdateUserRole(ctx, u.ID, model.RoleAdmin))
	got := a.GetUser(ctx, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.Nil(t, got.AdminPermissions)
	assert.True(t, got.Can(model.CapSystemSettings, true))
	assert.False(t, got.Can(model.CapSystemSettings, false))
}

func TestDeleteUser_ScansFirstThenProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "janedoe", "jane@example.com")
	_, err := f.scanService().CreateScan(ctx, u.ID, "img", fern("boston-fern"))
	require.NoError(t, err)

	calls := &callLog{}
	a := NewAdminService(&loggingProfiles{profileStore: f.profiles, log: calls},
		&failingScans{scanStore: f.scans, log: calls}, f.species, f.events, zap.NewNop())

	require.True(t, a.DeleteUser(ctx, u.ID, "admin-1"))
	assert.Equal(t, []string{"scans.DeleteByUser", "profiles.Delete"}, calls.calls)

	_, err = f.profiles.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	n, err := f.scans.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, f.events.deleted, 1)
	assert.Equal(t, 1, f.events.deleted[0].ScansDeleted)
	assert.Equal(t, "jane@example.com", f.events.deleted[0].Email)
	assert.Equal(t, "admin-1", f.events.deleted[0].DeletedBy)
}

func TestDeleteUser_RemovesPicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := &fakeUploader{url: "https://cdn"}
	u := f.register(t, "janedoe", "jane@example.com")
	withPic := f.auth(up).UpdateProfile(ctx, u.ID, "", &Upload{Filename: "me.png", Body: strings.NewReader("x")})
	require.NotNil(t, withPic)

	require.True(t, f.admin().WithAvatars(up).DeleteUser(ctx, u.ID, "admin-1"))
	assert.Equal(t, []string{withPic.ProfilePicture}, up.deleted)

	bare := f.register(t, "plain", "plain@example.com")
	require.True(t, f.admin().WithAvatars(up).DeleteUser(ctx, bare.ID, "admin-1"))
	assert.Len(t, up.deleted, 1, "no picture, nothing to remove")
}

func TestDeleteUser_AbortsWhenScanDeletionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "janedoe", "jane@example.com")

	calls := &callLog{}
	a := NewAdminService(&loggingProfiles{profileStore: f.profiles, log: calls},
		&failingScans{scanStore: f.scans, log: calls, deleteByUser: errBackend}, f.species, f.events, zap.NewNop())

	assert.False(t, a.DeleteUser(ctx, u.ID, "admin-1"))
	assert.Equal(t, []string{"scans.DeleteByUser"}, calls.calls)

	_, err := f.profiles.GetByID(ctx, u.ID)
	assert.NoError(t, err, "profile must survive")
	assert.Empty(t, f.events.deleted)
}

func TestGetAllUsers_NewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "first", "first@example.com")
	time.Sleep(5 * time.Millisecond)
	second := f.register(t, "second", "second@example.com")

	users := f.admin().GetAllUsers(context.Background())
	require.Len(t, users, 2)
	assert.Equal(t, second.ID, users[0].ID)
	assert.Equal(t, first.ID, users[1].ID)
}

func TestScanCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a", "a@example.com")
	b := f.register(t, "b", "b@example.com")
	svc := f.scanService()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateScan(ctx, a.ID, "img", fern("boston-fern"))
		require.NoError(t, err)
	}

	counts := f.admin().ScanCounts(ctx, []model.User{*a, *b})
	assert.Equal(t, map[string]int{a.ID: 3, b.ID: 0}, counts)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSpecies(t, "boston-fern", "Boston Fern", "Nephrolepis exaltata")
	u := f.register(t, "a", "a@example.com")
	svc := f.scanService()

	for _, c := range []model.Classification{
		fern("boston-fern"), fern("boston-fern"), fern("staghorn-fern"),
		{IsPlant: true, Confidence: 0.8},
		{Confidence: 0.7},
		fern("maidenhair-fern"),
	} {
		_, err := svc.CreateScan(ctx, u.ID, "img", c)
		require.NoError(t, err)
	}

	st := f.admin().Dashboard(ctx)
	assert.Equal(t, 1, st.TotalUsers)
	assert.Equal(t, 6, st.TotalScans)
	assert.Equal(t, 4, st.FernScans)
	assert.Equal(t, 1, st.SpeciesCount)
	assert.Len(t, st.RecentScans, 5)
	require.NotEmpty(t, st.TopSpecies)
	assert.Equal(t, SpeciesCount{Slug: "boston-fern", Name: "Boston Fern", Count: 2}, st.TopSpecies[0])
	assert.Len(t, st.TopSpecies, 3)
}

func TestDashboard_FailingSourceContributesNothing(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a", "a@example.com")
	a := NewAdminService(f.profiles, &failingScans{scanStore: f.scans, list: errBackend}, f.species, nil, zap.NewNop())

	st := a.Dashboard(context.Background())
	assert.Equal(t, 1, st.TotalUsers)
	assert.Zero(t, st.TotalScans)
	assert.Empty(t, st.RecentScans)
}
