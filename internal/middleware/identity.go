package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/session"
)

// Context keys set by RequireSession and RequireCapability.
const (
	ctxUser    = "user"
	ctxClaims  = "session"
)

// CurrentUser returns the signed-in user stored by RequireSession, or
// nil on public routes.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(ctxUser).(*model.User)
	return u
}

// CurrentClaims returns the decoded session token, or nil.
func CurrentClaims(c echo.Context) *session.Claims {
	cl, _ := c.Get(ctxClaims).(*session.Claims)
	return cl
}

// currentUserID names the caller for rate limiting: the user id when a
// session is attached, "anon" otherwise.
func currentUserID(c echo.Context) string {
	if u := CurrentUser(c); u != nil && u.ID != "" {
		return u.ID
	}
	return "anon"
}
