package handler

import (
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/httpx"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/service"
)

// UserHandler exposes the user administration surface.
type UserHandler struct {
	Svc  *service.AuthService
	Prod bool
}

func NewUserHandler(svc *service.AuthService, prod bool) *UserHandler {
	return &UserHandler{Svc: svc, Prod: prod}
}

func paramID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

func currentUserIsAdmin(c echo.Context) bool {
	u := middleware.CurrentUser(c)
	return u != nil && u.HasRole(model.RoleAdmin)
}

type updateUserReq struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
	Locked *bool   `json:"locked"`
}

func (r updateUserReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 100)),
	)
}

type roleReq struct {
	Role string `json:"role"`
}

func (r roleReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}

// List returns a paginated user listing with optional substring search
// over email and name. Admin only.
func (h *UserHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	filter := repository.ListFilter{
		Search:          c.QueryParam("search"),
		IncludeInactive: c.QueryParam("include_inactive") == "true",
		Page:            page,
		PerPage:         perPage,
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	users, total, err := h.Svc.ListUsers(ctx, filter)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "users", echo.Map{
		"users": users,
		"total": total,
	})
}

// Get returns one user with roles. Admin or self.
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.GetProfile(ctx, id)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user", user)
}

// Update applies the allow-listed mutable fields. Admin or self; the
// route guard enforces that, and locking/unlocking is additionally
// restricted to admins here since self-service urges are no reason to
// unlock an account.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	upd := model.UserUpdate{Name: req.Name}
	if caller := currentUserIsAdmin(c); caller {
		upd.Active = req.Active
		upd.Locked = req.Locked
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.UpdateUser(ctx, id, upd)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user updated", user)
}

// Deactivate flips the account inactive. Admin only.
func (h *UserHandler) Deactivate(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.DeactivateUser(ctx, id)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user deactivated", user)
}

// ToggleActive flips the active flag. Admin only.
func (h *UserHandler) ToggleActive(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.ToggleActive(ctx, id)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user updated", user)
}

// AssignRole grants a role. Admin only.
func (h *UserHandler) AssignRole(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.AssignRole(ctx, id, req.Role); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role assigned", nil)
}

// RemoveRole revokes a role. Admin only.
func (h *UserHandler) RemoveRole(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.RemoveRole(ctx, id, req.Role); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role removed", nil)
}

// Approve promotes a pending account: activates it and replaces the
// pending role (default target: client). Admin only.
func (h *UserHandler) Approve(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	var req roleReq
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.ApprovePending(ctx, id, req.Role)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user approved", user)
}

// ChangeRole replaces the user's role set with one role. Admin only.
func (h *UserHandler) ChangeRole(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpx.FailValidation(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.ChangeRole(ctx, id, req.Role)
	if err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "role changed", user)
}

// Delete permanently removes a user and their role associations.
// Admin only.
func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, service.CodeValidation, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.DeleteUser(ctx, id); err != nil {
		return httpx.FailErr(c, err, h.Prod)
	}
	return httpx.OK(c, http.StatusOK, "user deleted", nil)
}
