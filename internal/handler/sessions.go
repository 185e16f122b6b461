package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/httpx"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// SessionHandler exposes session review and revocation.
type SessionHandler struct {
	Svc  *service.AuthService
	Prod bool
}

func NewSessionHandler(svc *service.AuthService, prod bool) *SessionHandler {
	return &SessionHandler{Svc: svc, Prod: prod}
}

// List returns the caller's active sessions, newest first.
func (h *SessionHandler) List(c echo.Context) error {
	user := middleware.CurrentUser(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	sessions, err := h.Svc.ListSessions(ctx, user.ID)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "sessions", sessions)
}

// Stats returns the caller's active and total session counts.
func (h *SessionHandler) Stats(c echo.Context) error {
	user := middleware.CurrentUser(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Svc.SessionStats(ctx, user.ID)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "session stats", stats)
}

// Invalidate revokes one of the caller's sessions. The user scope in
// the store makes someone else's session id look like a missing one.
func (h *SessionHandler) Invalidate(c echo.Context) error {
	user := middleware.CurrentUser(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid session id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.InvalidateSession(ctx, id, user.ID); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "session invalidated", nil)
}

// Cleanup runs the expired-session sweep. Admin only; scheduling is
// left to an external cron hitting this endpoint.
func (h *SessionHandler) Cleanup(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Svc.CleanExpiredSessions(ctx)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "expired sessions cleaned", echo.Map{"count": n})
}
