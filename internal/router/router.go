package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/fernid/internal/handler"
	"github.com/iliyamo/fernid/internal/middleware"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/session"
)

// Deps bundles everything the routes need.  Cache may be a disabled
// cache; RateLimit may be nil.
type Deps struct {
	Sessions  *session.Manager
	Guard     *middleware.Guard
	Cache     *middleware.ResponseCache
	RateLimit echo.MiddlewareFunc

	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Admin   *handler.AdminHandler
	Species *handler.SpeciesHandler
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	e.Use(middleware.Attach(d.Sessions))
	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	RegisterPublic(e, d)
	RegisterUser(e, d)
	RegisterAdmin(e, d)
}

// RegisterPublic mounts the routes that need no session.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	e.POST("/login", d.Auth.Login)
	e.POST("/register", d.Auth.Register)
	e.POST("/admin/login", d.Auth.AdminLogin)
	e.GET("/logout", d.Auth.Logout)
	e.POST("/logout", d.Auth.Logout)

	e.GET("/species", d.Species.List, d.Cache.Middleware())
	e.GET("/species/:slug", d.Species.Get, d.Cache.Middleware())
}

// scanBodyLimit admits a 5MB image once base64 encoded or wrapped in a
// multipart form.
const scanBodyLimit = "8M"

// RegisterUser mounts the user area.  Middleware is attached per route
// so unknown paths still fall through to 404.
func RegisterUser(e *echo.Echo, d Deps) {
	mw := middleware.RequireSession(d.Sessions, session.AreaUser)
	h := d.User

	e.GET("/dashboard", h.Dashboard, mw)
	e.GET("/scan", h.ScanPage, mw)
	e.POST("/scan", h.Scan, mw, echomw.BodyLimit(scanBodyLimit))
	e.GET("/history", h.History, mw)
	e.DELETE("/history", h.DeleteHistory, mw)
	e.DELETE("/history/:id", h.DeleteHistoryItem, mw)
	e.GET("/results/:scanId", h.Result, mw)
	e.GET("/fern/:fernId", h.Fern, mw)
	e.GET("/profile", h.Profile, mw)
	e.PUT("/profile", h.UpdateProfile, mw)
	e.GET("/jupyter-info", h.JupyterInfo, mw)
}

// RegisterAdmin mounts the admin area.  Each group re-checks its
// capability against the server on every request.
func RegisterAdmin(e *echo.Echo, d Deps) {
	area := middleware.RequireSession(d.Sessions, session.AreaAdmin)
	can := d.Guard.RequireCapability
	h := d.Admin

	e.GET("/admin", h.Dashboard, area, can(model.CapViewAnalytics))

	users := e.Group("/admin/users", area, can(model.CapManageUsers))
	users.GET("", h.Users)
	users.POST("/:id/promote", h.Promote)
	users.POST("/:id/demote", h.Demote)
	users.PUT("/:id/role", h.UpdateRole)
	users.DELETE("/:id", h.DeleteUser)
	users.POST("/:id/deactivate", h.Deactivate)
	users.POST("/:id/reactivate", h.Reactivate)

	scans := e.Group("/admin/scans", area, can(model.CapViewAnalytics))
	scans.GET("", h.ScanLogs)
	scans.DELETE("/:id", h.DeleteScan)

	species := e.Group("/admin/species", area, can(model.CapManageContent))
	species.GET("", h.ListSpecies)
	species.POST("", h.CreateSpecies, d.Cache.InvalidateOnSuccess())
	species.PUT("/:slug", h.UpdateSpecies, d.Cache.InvalidateOnSuccess())
	species.DELETE("/:slug", h.DeleteSpecies, d.Cache.InvalidateOnSuccess())

	settings := e.Group("/admin/settings", area, can(model.CapSystemSettings))
	settings.GET("", h.GetSettings)
	settings.PUT("", h.UpdateSettings)
}
