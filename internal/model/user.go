package model

import "time"

// Role is the coarse access level stored on a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// NormalizeRole maps any stored value onto one of the two known roles.
// Anything other than "admin" is treated as a plain user.
func NormalizeRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Capability names one admin permission flag.  The string values double
// as the JSON keys persisted in profiles.admin_permissions.
type Capability string

const (
	CapManageUsers    Capability = "manageUsers"
	CapManageContent  Capability = "manageContent"
	CapViewAnalytics  Capability = "viewAnalytics"
	CapSystemSettings Capability = "systemSettings"
)

// Capabilities is the closed set of admin capabilities in display order.
// Adding a capability means adding it here and to AdminPermissions.
var Capabilities = []Capability{
	CapManageUsers,
	CapManageContent,
	CapViewAnalytics,
	CapSystemSettings,
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	for _, k := range Capabilities {
		if k == c {
			return true
		}
	}
	return false
}

// AdminPermissions represents the admin_permissions JSON object attached
// to an admin profile.
//
// Fields:
//  ManageUsers    – list, promote, demote and delete users.
//  ManageContent  – create, edit and delete fern species.
//  ViewAnalytics  – view the admin dashboard and scan logs.
//  SystemSettings – edit the admin settings blobs.
type AdminPermissions struct {
	ManageUsers    bool `json:"manageUsers"`
	ManageContent  bool `json:"manageContent"`
	ViewAnalytics  bool `json:"viewAnalytics"`
	SystemSettings bool `json:"systemSettings"`
}

// Has reports whether the capability flag is set.
func (p AdminPermissions) Has(c Capability) bool {
	switch c {
	case CapManageUsers:
		return p.ManageUsers
	case CapManageContent:
		return p.ManageContent
	case CapViewAnalytics:
		return p.ViewAnalytics
	case CapSystemSettings:
		return p.SystemSettings
	}
	return false
}

// With returns a copy of p with capability c set to v.  Unknown
// capabilities leave p unchanged.
func (p AdminPermissions) With(c Capability, v bool) AdminPermissions {
	switch c {
	case CapManageUsers:
		p.ManageUsers = v
	case CapManageContent:
		p.ManageContent = v
	case CapViewAnalytics:
		p.ViewAnalytics = v
	case CapSystemSettings:
		p.SystemSettings = v
	}
	return p
}

// PermissionsFrom builds a full permission set from a partial grant.
// Capabilities missing from the grant are false, never inherited.
func PermissionsFrom(grant map[Capability]bool) AdminPermissions {
	var p AdminPermissions
	for _, c := range Capabilities {
		p = p.With(c, grant[c])
	}
	return p
}

// FullPermissions returns a permission set with every capability granted.
func FullPermissions() AdminPermissions {
	var p AdminPermissions
	for _, c := range Capabilities {
		p = p.With(c, true)
	}
	return p
}

// User is the application-level identity record built from a profile row.
// ProfilePicture is empty and AdminPermissions is nil when absent.
type User struct {
	ID               string            `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	Role             Role              `json:"role"`
	CreatedAt        time.Time         `json:"createdAt"`
	ProfilePicture   string            `json:"profilePicture,omitempty"`
	AdminPermissions *AdminPermissions `json:"adminPermissions,omitempty"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Can reports whether the user holds capability c.  Plain users never do,
// whatever permissions are stored.  An admin without a permissions record
// is a legacy admin and gets legacyFullAccess for every capability.
func (u User) Can(c Capability, legacyFullAccess bool) bool {
	if !u.IsAdmin() {
		return false
	}
	if u.AdminPermissions == nil {
		return legacyFullAccess
	}
	return u.AdminPermissions.Has(c)
}
