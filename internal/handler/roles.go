package handler

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/httpx"
	"github.com/iliyamo/auth-service/internal/service"
)

// RoleHandler exposes the role catalog administration surface.
type RoleHandler struct {
	Svc  *service.AuthService
	Prod bool
}

func NewRoleHandler(svc *service.AuthService, prod bool) *RoleHandler {
	return &RoleHandler{Svc: svc, Prod: prod}
}

type roleCatalogReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r roleCatalogReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Description, validation.Length(0, 255)),
	)
}

// List returns the whole role catalog. Admin only.
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Svc.ListRoles(ctx)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "roles", echo.Map{"roles": roles})
}

// Create adds a role to the catalog. Admin only.
func (h *RoleHandler) Create(c echo.Context) error {
	var req roleCatalogReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Svc.CreateRole(ctx, req.Name, req.Description)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusCreated, "role created", role)
}

// Update renames or re-describes a role. Admin only.
func (h *RoleHandler) Update(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid role id")
	}
	var req roleCatalogReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Svc.UpdateRole(ctx, id, req.Name, req.Description)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role updated", role)
}

// Delete removes a role nobody holds. Admin only.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid role id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.DeleteRole(ctx, id); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role deleted", nil)
}

// Members lists the users holding a role. Admin only.
func (h *RoleHandler) Members(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid role id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Svc.RoleMembers(ctx, id)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role members", echo.Map{"users": users})
}
