package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, NormalizeRole("admin"))
	assert.Equal(t, RoleUser, NormalizeRole("user"))
	assert.Equal(t, RoleUser, NormalizeRole("ADMIN"))
	assert.Equal(t, RoleUser, NormalizeRole(""))
	assert.Equal(t, RoleUser, NormalizeRole("superuser"))
}

func TestPermissionsFrom_DefaultsMissingToFalse(t *testing.T) {
	p := PermissionsFrom(map[Capability]bool{CapViewAnalytics: true})
	assert.Equal(t, AdminPermissions{ViewAnalytics: true}, p)

	assert.Equal(t, AdminPermissions{}, PermissionsFrom(nil))
	assert.Equal(t, FullPermissions(), PermissionsFrom(map[Capability]bool{
		CapManageUsers: true, CapManageContent: true, CapViewAnalytics: true, CapSystemSettings: true,
	}))
}

func TestPermissionsFrom_IgnoresUnknownKeys(t *testing.T) {
	p := PermissionsFrom(map[Capability]bool{"deleteEverything": true})
	for _, c := range Capabilities {
		assert.False(t, p.Has(c), c)
	}
}

func TestUserCan(t *testing.T) {
	perms := AdminPermissions{ManageContent: true}
	admin := User{Role: RoleAdmin, AdminPermissions: &perms}
	assert.True(t, admin.Can(CapManageContent, false))
	assert.False(t, admin.Can(CapManageUsers, true))

	legacy := User{Role: RoleAdmin}
	assert.True(t, legacy.Can(CapSystemSettings, true))
	assert.False(t, legacy.Can(CapSystemSettings, false))

	full := FullPermissions()
	demoted := User{Role: RoleUser, AdminPermissions: &full}
	for _, c := range Capabilities {
		assert.False(t, demoted.Can(c, true), c)
	}
}

func TestClassificationValid(t *testing.T) {
	assert.True(t, Classification{IsPlant: true, IsFern: true, Species: "boston-fern", Confidence: 0.9}.Valid())
	assert.True(t, Classification{IsPlant: true, Confidence: 0.8}.Valid())
	assert.True(t, Classification{Confidence: 0.7}.Valid())
	assert.False(t, Classification{IsFern: true, Species: "boston-fern", Confidence: 0.9}.Valid())
	assert.False(t, Classification{IsPlant: true, IsFern: true, Confidence: 0.9}.Valid())
	assert.False(t, Classification{IsPlant: true, Species: "boston-fern", Confidence: 0.9}.Valid())
	assert.False(t, Classification{Confidence: 1.2}.Valid())
}
