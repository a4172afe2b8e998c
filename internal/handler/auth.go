package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/config"
	"github.com/iliyamo/fernid/internal/middleware"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/service"
	"github.com/iliyamo/fernid/internal/session"
	"github.com/iliyamo/fernid/internal/utils"
)

// AuthHandler serves sign-in, registration and sign-out.
type AuthHandler struct {
	Cfg      config.Config
	Auth     *service.AuthService
	Sessions *session.Manager
	Log      *zap.Logger
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService, sessions *session.Manager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth, Sessions: sessions, Log: log}
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type registerReq struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

type sessionResp struct {
	User     model.User `json:"user"`
	Token    string     `json:"token"`
	Expires  time.Time  `json:"expires"`
	Redirect string     `json:"redirect"`
}

// Login signs a user in.  Admins are sent to the admin area.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	u := h.Auth.LoginWithEmail(ctx, req.Email, req.Password)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password."})
	}
	redirect := "/dashboard"
	if u.IsAdmin() {
		redirect = session.PathAdminHome
	}
	return h.startSession(c, *u, redirect)
}

// AdminLogin signs in admins only.  A valid plain-user login is rejected
// with the same message as wrong credentials and no session is created.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	u := h.Auth.LoginWithEmail(ctx, req.Email, req.Password)
	if u == nil || !u.IsAdmin() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid admin credentials."})
	}
	return h.startSession(c, *u, session.PathAdminHome)
}

func (h *AuthHandler) startSession(c echo.Context, u model.User, redirect string) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	tok, ck, err := h.Sessions.Start(ctx, u)
	if err != nil {
		h.Log.Error("start session", zap.String("user_id", u.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong. Please try again."})
	}
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, sessionResp{User: u, Token: tok.Raw, Expires: tok.Exp, Redirect: redirect})
}

// Register creates an account from a JSON body or a multipart form with
// an optional "picture" file.  The user signs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, email and password are required"})
	}
	if tooLong(req.Username) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errUsernameLength.msg})
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Passwords do not match"})
	}
	if len(req.Password) < utils.MinPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Password does not meet minimum requirements"})
	}

	pic, closer, err := formPicture(c, "picture")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": inputMessage(err, "invalid picture upload")})
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout+30*time.Second)
	defer cancel()

	u, err := h.Auth.RegisterWithEmail(ctx, req.Username, req.Email, req.Password, pic)
	switch {
	case errors.Is(err, service.ErrDuplicateAccount):
		return c.JSON(http.StatusConflict, echo.Map{"error": "An account with this email already exists. Please log in instead."})
	case errors.Is(err, service.ErrEmailRegistered):
		return c.JSON(http.StatusConflict, echo.Map{"error": "This email is already registered."})
	case errors.Is(err, service.ErrProfileSetup):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Account created but profile setup failed."})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Unable to create account. Please try again."})
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": u, "redirect": session.PathLogin})
}

// Logout clears the session cookie, revokes the session and sends the
// browser to the login page.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Cfg.RequestTimeout)
	defer cancel()

	claims := middleware.CurrentClaims(c)
	if claims == nil {
		claims = h.Sessions.Current(c.Request())
	}
	ck, err := h.Sessions.End(ctx, claims)
	if err != nil {
		h.Log.Warn("logout: revoke failed", zap.Error(err))
	}
	c.SetCookie(ck)
	return c.Redirect(http.StatusFound, session.PathLogin)
}
