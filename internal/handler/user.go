package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/classifier"
	"github.com/iliyamo/fernid/internal/config"
	"github.com/iliyamo/fernid/internal/middleware"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/service"
	"github.com/iliyamo/fernid/internal/session"
	"github.com/iliyamo/fernid/internal/settings"
)

// UserHandler serves the signed-in user pages.  Every route is mounted
// behind RequireSession(AreaUser), so CurrentUser is never nil here.
type UserHandler struct {
	Cfg        config.Config
	Scans      *service.ScanService
	Auth       *service.AuthService
	Classifier classifier.Classifier
	Settings   settings.Store
	Sessions   *session.Manager
	Log        *zap.Logger
}

// Dashboard shows scan totals and the three most recent scans.
func (h *UserHandler) Dashboard(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	scans := h.Scans.GetUserScans(ctx, u.ID)
	recent := scans
	if len(recent) > 3 {
		recent = recent[:3]
	}
	fern := 0
	for _, s := range scans {
		if s.IsFern {
			fern++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        u,
		"totalScans":  len(scans),
		"fernScans":   fern,
		"recentScans": nonNil(recent),
	})
}

// ScanPage describes the scan screen: who is signed in and the progress
// labels shown while a scan runs.
func (h *UserHandler) ScanPage(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user":  middleware.CurrentUser(c),
		"steps": classifier.ProgressSteps,
	})
}

type scanReq struct {
	Image string `json:"image" form:"image"`
}

// Scan classifies an image and records the result.  The image comes as
// a data URL or remote URL in "image", or as a multipart "image" file.
func (h *UserHandler) Scan(c echo.Context) error {
	u := middleware.CurrentUser(c)
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Image == "" && isMultipart(c) {
		fh, err := c.FormFile("image")
		if err == nil {
			if req.Image, err = dataURL(fh); err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": inputMessage(err, "invalid image upload")})
			}
		}
	}
	if strings.TrimSpace(req.Image) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Please select an image to scan"})
	}
	if len(req.Image) > maxImageLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errImageTooLarge.msg})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout+h.Cfg.ScanDelay)
	defer cancel()

	result, err := h.Classifier.Classify(ctx, req.Image)
	if err != nil {
		h.Log.Warn("classify", zap.String("user_id", u.ID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Scan was interrupted. Please try again."})
	}
	saved, err := h.Scans.CreateScan(ctx, u.ID, req.Image, result)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save scan result. Please try again."})
	}
	return c.JSON(http.StatusCreated, echo.Map{"scan": saved, "redirect": "/results/" + saved.ID})
}

// History lists the user's scans, optionally filtered by ?q=.
func (h *UserHandler) History(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	all := h.Scans.GetUserScans(ctx, u.ID)
	scans := service.FilterHistory(all, c.QueryParam("q"))
	return c.JSON(http.StatusOK, echo.Map{"scans": nonNil(scans), "total": len(all)})
}

// DeleteHistoryItem removes one of the user's own scans.
func (h *UserHandler) DeleteHistoryItem(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	if _, ok := h.ownScan(c, u, c.Param("id")); !ok {
		return nil
	}
	if !h.Scans.DeleteScan(ctx, c.Param("id")) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete scan"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteHistory removes all of the user's scans.
func (h *UserHandler) DeleteHistory(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	n, ok := h.Scans.DeleteAllScans(ctx, u.ID)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Some scans could not be deleted", "deleted": n})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Result shows one of the user's scans.
func (h *UserHandler) Result(c echo.Context) error {
	scan, ok := h.ownScan(c, middleware.CurrentUser(c), c.Param("scanId"))
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, echo.Map{"scan": scan})
}

// Fern shows the species details of one of the user's fern scans.
func (h *UserHandler) Fern(c echo.Context) error {
	scan, ok := h.ownScan(c, middleware.CurrentUser(c), c.Param("fernId"))
	if !ok {
		return nil
	}
	if !scan.IsFern || scan.Details == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Fern details not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"scan": scan, "species": scan.Species, "details": scan.Details})
}

// ownScan loads a scan owned by u.  Someone else's scan is reported as
// missing; when ok is false the 404 has already been written.
func (h *UserHandler) ownScan(c echo.Context, u *model.User, id string) (*model.ScanResult, bool) {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	scan := h.Scans.GetScanByID(ctx, id)
	if scan == nil || scan.UserID != u.ID {
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "Scan not found"})
		return nil, false
	}
	return scan, true
}

// Profile shows the signed-in user's account.
func (h *UserHandler) Profile(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	return c.JSON(http.StatusOK, echo.Map{"user": u, "scanCount": len(h.Scans.GetUserScans(ctx, u.ID))})
}

type profileReq struct {
	Username string `json:"username" form:"username"`
}

// UpdateProfile changes the username and picture and re-issues the
// session so the header shows the new values.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	u := middleware.CurrentUser(c)
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if tooLong(strings.TrimSpace(req.Username)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errUsernameLength.msg})
	}
	pic, closer, err := formPicture(c, "picture")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": inputMessage(err, "invalid picture upload")})
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	updated := h.Auth.UpdateProfile(ctx, u.ID, req.Username, pic)
	if updated == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update profile"})
	}
	updated.Email = u.Email

	if _, err := h.Sessions.End(ctx, middleware.CurrentClaims(c)); err != nil {
		h.Log.Warn("profile: revoke old session", zap.Error(err))
	}
	tok, ck, err := h.Sessions.Start(ctx, *updated)
	if err != nil {
		h.Log.Error("profile: reissue session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Profile saved, please sign in again"})
	}
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, echo.Map{"user": updated, "token": tok.Raw})
}

// JupyterInfo points at the notebook the model was trained in.
func (h *UserHandler) JupyterInfo(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	s, err := h.Settings.Load(ctx)
	if err != nil {
		h.Log.Warn("jupyter-info: settings", zap.Error(err))
		s = settings.Defaults()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notebookUrl":  s.Model.JupyterNotebookURL,
		"modelVersion": s.Model.ModelVersion,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
