package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fernid/internal/session"
)

// RequireSession guards the routes of one area.  It reads the session
// cookie without contacting the backend and either redirects according
// to session.Resolve or stores the user for the handler.
func RequireSession(m *session.Manager, area session.Area) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := m.Current(c.Request())
			if claims == nil {
				return c.Redirect(http.StatusFound, session.Resolve(area, nil))
			}
			if target := session.Resolve(area, &claims.User); target != "" {
				return c.Redirect(http.StatusFound, target)
			}
			u := claims.User
			c.Set(ctxClaims, claims)
			c.Set(ctxUser, &u)
			return next(c)
		}
	}
}

// Attach stores the session user when one is present and never
// redirects.  Public routes use it so rate limiting can key on the user.
func Attach(m *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims := m.Current(c.Request()); claims != nil {
				u := claims.User
				c.Set(ctxClaims, claims)
				c.Set(ctxUser, &u)
			}
			return next(c)
		}
	}
}
