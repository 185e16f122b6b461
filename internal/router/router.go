// Package router wires handlers, guards and the rate limiter onto the
// echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// Register mounts every route. Anonymous auth endpoints sit behind the
// redis rate limiter; everything under the authenticated group passes
// the access gate, which re-checks live account state on each request.
func Register(e *echo.Echo, svc *service.AuthService, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	prod := cfg.Production()
	auth := handler.NewAuthHandler(svc, prod)
	users := handler.NewUserHandler(svc, prod)
	roles := handler.NewRoleHandler(svc, prod)
	sessions := handler.NewSessionHandler(svc, prod)

	e.GET("/healthz", handler.Health)

	limiter := middleware.RateLimit(rlCfg, rdb)
	admin := middleware.RequireRole(model.RoleAdmin)

	// Anonymous endpoints. The refresh token always travels in the
	// request body, never in a header.
	g := e.Group("/v1/auth")
	g.POST("/register", auth.Register, limiter)
	g.POST("/login", auth.Login, limiter)
	g.POST("/refresh", auth.Refresh)
	g.POST("/logout", auth.Logout)

	// Everything below requires a valid bearer access token.
	v1 := e.Group("/v1", middleware.Authenticate(svc, prod))

	v1.GET("/auth/me", auth.Me)
	v1.GET("/auth/verify", auth.Verify)
	v1.POST("/auth/change-password", auth.ChangePassword)
	v1.POST("/auth/logout-all", auth.LogoutAll)

	v1.GET("/sessions", sessions.List)
	v1.GET("/sessions/stats", sessions.Stats)
	v1.DELETE("/sessions/:id", sessions.Invalidate)
	v1.POST("/sessions/logout-all", auth.LogoutAll)
	v1.POST("/sessions/cleanup", sessions.Cleanup, admin)

	v1.GET("/roles", roles.List, admin)
	v1.POST("/roles", roles.Create, admin)
	v1.PUT("/roles/:id", roles.Update, admin)
	v1.DELETE("/roles/:id", roles.Delete, admin)
	v1.GET("/roles/:id/users", roles.Members, admin)

	v1.GET("/users", users.List, admin)
	v1.GET("/users/:id", users.Get, middleware.RequireOwnershipOrAdmin("id"))
	v1.PUT("/users/:id", users.Update, middleware.RequireOwnershipOrAdmin("id"))
	v1.POST("/users/:id/deactivate", users.Deactivate, admin)
	v1.POST("/users/:id/roles", users.AssignRole, admin)
	v1.DELETE("/users/:id/roles", users.RemoveRole, admin)
	v1.POST("/users/:id/approve", users.Approve, admin)
	v1.PUT("/users/:id/role", users.ChangeRole, admin)
	v1.POST("/users/:id/toggle-active", users.ToggleActive, admin)
	v1.DELETE("/users/:id", users.Delete, admin)
}
