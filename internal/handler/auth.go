// Package handler contains the thin HTTP layer: bind, validate,
// delegate to the auth service, wrap the result in an envelope.
package handler

import (
	"context"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/httpx"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// dbTimeout bounds every unit of work against the persistence layer.
const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Svc  *service.AuthService
	Prod bool
}

func NewAuthHandler(svc *service.AuthService, prod bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Prod: prod}
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func clientInfo(c echo.Context) service.ClientInfo {
	return service.ClientInfo{
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
	}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Name, validation.Length(0, 100)),
	)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// logoutReq deliberately has no required fields: logout with no token
// is already-logged-out, which is success.
type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r changePasswordReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type logoutAllReq struct {
	ExceptSessionID string `json:"except_session_id"`
}

// ----- Handlers -----

// Register creates a pending account and returns the user plus an
// initial token pair. The account cannot pass protected route guards
// until an administrator approves it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, pair, err := h.Svc.Register(ctx, req.Email, req.Password, req.Name, clientInfo(c))
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusCreated, "registration successful, account pending approval", echo.Map{
		"user":   user,
		"tokens": pair,
	})
}

// Login verifies credentials and opens a new device session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, pair, err := h.Svc.Login(ctx, req.Email, req.Password, clientInfo(c))
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "login successful", echo.Map{
		"user":   user,
		"tokens": pair,
	})
}

// Refresh rotates the presented refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, pair, err := h.Svc.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "tokens refreshed", echo.Map{
		"user":   user,
		"tokens": pair,
	})
}

// Logout invalidates the session behind a refresh token. It always
// reports success so a client can drop its local credentials no matter
// what happened server-side.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()

	h.Svc.Logout(ctx, req.RefreshToken)
	return httpx.OK(c, http.StatusOK, "logged out", nil)
}

// LogoutAll invalidates every session of the caller, optionally
// sparing one.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	user := middleware.CurrentUser(c)
	var req logoutAllReq
	_ = c.Bind(&req)

	except := uuid.Nil
	if req.ExceptSessionID != "" {
		id, err := uuid.Parse(req.ExceptSessionID)
		if err != nil {
			return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "except_session_id is not a valid session id")
		}
		except = id
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Svc.LogoutAll(ctx, user.ID, except)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "sessions invalidated", echo.Map{"count": n})
}

// ChangePassword rotates the caller's password credential. Other
// sessions stay alive; clients wanting a clean slate call LogoutAll.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user := middleware.CurrentUser(c)
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "password changed", nil)
}

// Me returns the authenticated user's profile. The access gate already
// reloaded the user, so this is a pure context read.
func (h *AuthHandler) Me(c echo.Context) error {
	return httpx.OK(c, http.StatusOK, "profile", middleware.CurrentUser(c))
}

// Verify confirms the presented access token is still honored. Note
// that a token stays verifiable until its own expiry even after the
// session behind it was logged out; only the refresh path is revoked.
func (h *AuthHandler) Verify(c echo.Context) error {
	return httpx.OK(c, http.StatusOK, "token valid", echo.Map{
		"user": middleware.CurrentUser(c),
	})
}
