package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/config"
	"github.com/iliyamo/fernid/internal/middleware"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/service"
	"github.com/iliyamo/fernid/internal/settings"
)

// SessionRevoker ends every live session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AdminHandler serves the admin area.  Routes are mounted behind
// RequireSession(AreaAdmin) and a capability guard per group.
type AdminHandler struct {
	Cfg      config.Config
	Admin    *service.AdminService
	Scans    *service.ScanService
	Species  *service.SpeciesService
	Settings settings.Store
	Revoker  SessionRevoker
	Log      *zap.Logger
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()
	return c.JSON(http.StatusOK, echo.Map{
		"user":  middleware.CurrentUser(c),
		"stats": h.Admin.Dashboard(ctx),
	})
}

type userRow struct {
	model.User
	ScanCount   int  `json:"scanCount"`
	Deactivated bool `json:"deactivated"`
}

// Users lists profiles with their scan counts, filtered by ?q=.
func (h *AdminHandler) Users(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	all := h.Admin.GetAllUsers(ctx)
	users := service.FilterUsers(all, c.QueryParam("q"))
	counts := h.Admin.ScanCounts(ctx, users)
	off, err := h.Settings.Deactivated(ctx)
	if err != nil {
		h.Log.Warn("users: deactivated set", zap.Error(err))
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{User: u, ScanCount: counts[u.ID], Deactivated: off[u.ID]})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": rows, "total": len(all)})
}

type promoteReq struct {
	Permissions map[model.Capability]bool `json:"permissions"`
}

// Promote makes the user an admin with the given capabilities.  Unknown
// keys are rejected and missing keys are stored as false.
func (h *AdminHandler) Promote(c echo.Context) error {
	var req promoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	for k := range req.Permissions {
		if !k.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown permission " + string(k)})
		}
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if h.Admin.GetUser(ctx, c.Param("id")) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if !h.Admin.PromoteUser(ctx, c.Param("id"), req.Permissions) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to promote user"})
	}
	return h.userResp(c, c.Param("id"))
}

func (h *AdminHandler) Demote(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if h.Admin.GetUser(ctx, c.Param("id")) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if !h.Admin.DemoteUser(ctx, c.Param("id")) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to demote user"})
	}
	return h.userResp(c, c.Param("id"))
}

type roleReq struct {
	Role string `json:"role"`
}

// UpdateRole changes only the role column; permissions are kept, so a
// user raised this way without prior permissions is a legacy admin.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := model.Role(req.Role)
	if role != model.RoleAdmin && role != model.RoleUser {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or user"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if h.Admin.GetUser(ctx, c.Param("id")) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if !h.Admin.UpdateUserRole(ctx, c.Param("id"), role) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update role"})
	}
	return h.userResp(c, c.Param("id"))
}

func (h *AdminHandler) userResp(c echo.Context, id string) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	u := h.Admin.GetUser(ctx, id)
	if u == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// DeleteUser removes the user's scans and profile.  Admins cannot
// delete themselves.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor := middleware.CurrentUser(c)
	id := c.Param("id")
	if actor != nil && actor.ID == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "You cannot delete your own account"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if h.Admin.GetUser(ctx, id) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	if !h.Admin.DeleteUser(ctx, id, actorID) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete user"})
	}
	if h.Revoker != nil {
		if err := h.Revoker.RevokeAllForUser(ctx, id); err != nil {
			h.Log.Warn("deleteUser: revoke sessions", zap.String("user_id", id), zap.Error(err))
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) Deactivate(c echo.Context) error { return h.setDeactivated(c, true) }
func (h *AdminHandler) Reactivate(c echo.Context) error { return h.setDeactivated(c, false) }

func (h *AdminHandler) setDeactivated(c echo.Context, off bool) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	id := c.Param("id")
	if err := h.Settings.SetDeactivated(ctx, id, off); err != nil {
		h.Log.Error("setDeactivated", zap.String("user_id", id), zap.Bool("off", off), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update user status"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "deactivated": off})
}

// ScanLogs lists every scan with its owner, filtered by ?filter= and
// ?q=.  The summary always covers all scans so the header figures do
// not move with the filter.
func (h *AdminHandler) ScanLogs(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	scans := h.Scans.GetAllScans(ctx)
	owners := make(map[string]model.User)
	for _, u := range h.Admin.GetAllUsers(ctx) {
		owners[u.ID] = u
	}
	f := service.ParseScanFilter(c.QueryParam("filter"))
	shown := service.FilterScanLog(scans, owners, f, c.QueryParam("q"))
	return c.JSON(http.StatusOK, echo.Map{
		"scans":   nonNil(shown),
		"owners":  owners,
		"summary": service.Summarize(scans),
		"filter":  f,
	})
}

func (h *AdminHandler) DeleteScan(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	id := c.Param("id")
	if h.Scans.GetScanByID(ctx, id) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Scan not found"})
	}
	if !h.Scans.DeleteScan(ctx, id) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete scan"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSpecies lists the catalog for the admin species page.
func (h *AdminHandler) ListSpecies(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()
	return c.JSON(http.StatusOK, echo.Map{"species": h.Species.Search(ctx, c.QueryParam("q"))})
}

type speciesReq struct {
	Slug string `json:"slug"`
	model.FernDetails
}

// CreateSpecies adds a species.  The slug defaults to the slugified
// common name.
func (h *AdminHandler) CreateSpecies(c echo.Context) error {
	var req speciesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.CommonName) == "" || strings.TrimSpace(req.ScientificName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "common and scientific name are required"})
	}
	slug := service.Slugify(req.Slug)
	if slug == "" {
		slug = service.Slugify(req.CommonName)
	}
	if slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slug"})
	}
	if tooLong(slug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errSlugLength.msg})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if h.Species.GetFernSpecies(ctx, slug) != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "A species with this slug already exists"})
	}
	if !h.Species.AddFernSpecies(ctx, slug, req.FernDetails) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to add species"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"slug": slug, "species": h.Species.GetFernSpecies(ctx, slug)})
}

func (h *AdminHandler) UpdateSpecies(c echo.Context) error {
	var req speciesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.CommonName) == "" || strings.TrimSpace(req.ScientificName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "common and scientific name are required"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	slug := c.Param("slug")
	if h.Species.GetFernSpecies(ctx, slug) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Species not found"})
	}
	if !h.Species.UpdateFernSpecies(ctx, slug, req.FernDetails) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update species"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slug": slug, "species": h.Species.GetFernSpecies(ctx, slug)})
}

func (h *AdminHandler) DeleteSpecies(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	slug := c.Param("slug")
	if h.Species.GetFernSpecies(ctx, slug) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Species not found"})
	}
	if !h.Species.DeleteFernSpecies(ctx, slug) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete species"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	s, err := h.Settings.Load(ctx)
	if err != nil {
		h.Log.Error("settings: load", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load settings"})
	}
	return c.JSON(http.StatusOK, s)
}

// UpdateSettings merges a partial settings document over the stored one.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	cur, err := h.Settings.Load(ctx)
	if err != nil {
		h.Log.Error("settings: load", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load settings"})
	}
	next, err := settings.Merge(cur, body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid settings document"})
	}
	if err := h.Settings.Save(ctx, next); err != nil {
		h.Log.Error("settings: save", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save settings"})
	}
	return c.JSON(http.StatusOK, next)
}
