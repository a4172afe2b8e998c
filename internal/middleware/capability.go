package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/session"
)

// UserLoader reloads a user's current profile.
type UserLoader interface {
	GetUser(ctx context.Context, id string) *model.User
}

// Guard checks admin capabilities against the server instead of the
// cookie: the session id must still be live and the reloaded profile
// must grant the capability.
type Guard struct {
	Sessions         *session.Manager
	Users            UserLoader
	LegacyFullAccess bool
	Timeout          time.Duration
	Log              *zap.Logger
}

// RequireCapability must run after RequireSession(AreaAdmin).  A revoked
// session gets 401; a user lacking the capability gets 403.
func (g *Guard) RequireCapability(cap model.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not signed in"})
			}
			timeout := g.Timeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			if err := g.Sessions.Verify(ctx, claims); err != nil {
				g.Log.Info("session rejected", zap.String("user_id", claims.Subject), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired, please sign in again"})
			}
			u := g.Users.GetUser(ctx, claims.Subject)
			if u == nil || !u.Can(cap, g.LegacyFullAccess) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "capability": string(cap)})
			}
			c.Set(ctxUser, u)
			return next(c)
		}
	}
}
