package session

import "github.com/iliyamo/fernid/internal/model"

// Area tells which half of the application a route belongs to.
type Area int

const (
	AreaUser Area = iota
	AreaAdmin
)

const (
	PathLogin      = "/login"
	PathAdminLogin = "/admin/login"
	PathAdminHome  = "/admin"
)

// Resolve returns where a request for a route in area should be sent, or
// "" when the route may render.  u is the session user, nil when signed
// out.
func Resolve(area Area, u *model.User) string {
	switch {
	case u == nil && area == AreaAdmin:
		return PathAdminLogin
	case u == nil:
		return PathLogin
	case area == AreaUser && u.IsAdmin():
		return PathAdminHome
	case area == AreaAdmin && !u.IsAdmin():
		return PathAdminLogin
	}
	return ""
}
