// Package middleware provides the access gate and guards shared by all
// protected routes.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/httpx"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// TokenVerifier is the slice of the auth service the gate needs.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (*model.User, error)
}

// userContextKey is where Authenticate stores the verified user.
const userContextKey = "auth.user"

// Authenticate validates the bearer access token and injects the live
// user into the request context. Clients rely on the TOKEN_EXPIRED
// code specifically to trigger an automatic refresh-and-retry, so the
// expired/invalid distinction from the verifier passes through intact.
func Authenticate(verifier TokenVerifier, production bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if header == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return httpx.Fail(c, 401, service.CodeTokenRequired, "bearer access token required")
			}
			user, err := verifier.VerifyAccessToken(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return httpx.FailErr(c, err, production)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user placed by Authenticate,
// or nil on unprotected routes.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userContextKey).(*model.User)
	return u
}

// RequireRole passes if the authenticated user holds any of the named
// roles, case-insensitively.
func RequireRole(names ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return httpx.Fail(c, 401, service.CodeTokenRequired, "bearer access token required")
			}
			for _, n := range names {
				if user.HasRole(n) {
					return next(c)
				}
			}
			return httpx.Fail(c, 403, service.CodeInsufficientPermission, "insufficient permissions")
		}
	}
}

// RequireOwnershipOrAdmin passes if the caller is an admin or the
// route's id parameter equals the caller's own id.
func RequireOwnershipOrAdmin(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return httpx.Fail(c, 401, service.CodeTokenRequired, "bearer access token required")
			}
			if user.HasRole(model.RoleAdmin) {
				return next(c)
			}
			id, err := strconv.ParseUint(c.Param(param), 10, 64)
			if err != nil || id != user.ID {
				return httpx.Fail(c, 403, service.CodeAccessDenied, "access denied")
			}
			return next(c)
		}
	}
}
