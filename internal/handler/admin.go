package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/foxshrine/shrine-api/internal/audit"
	"github.com/foxshrine/shrine-api/internal/middleware"
	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/repository"
)

// UserAdminStore is the user management surface of the admin endpoints.
type UserAdminStore interface {
	List(ctx context.Context, page, limit int, role, search string) ([]repository.UserSummary, int, error)
	UpdateRole(ctx context.Context, userID, roleID uint64) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RoleAdminStore lists roles and resolves role names.
type RoleAdminStore interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

// ActivityStore reads the activity log back for the admin UI.
type ActivityStore interface {
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.ActivityLogEntry, error)
	ListSystem(ctx context.Context, limit int) ([]model.ActivityLogEntry, error)
}

// AdminHandler serves the user/role/log management endpoints.
type AdminHandler struct {
	Users UserAdminStore
	Roles RoleAdminStore
	Logs  ActivityStore
	Audit Auditor
}

func NewAdminHandler(u UserAdminStore, r RoleAdminStore, l ActivityStore, a Auditor) *AdminHandler {
	return &AdminHandler{Users: u, Roles: r, Logs: l, Audit: a}
}

// ListUsers returns a filtered page of users. Requires users.read.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	role := strings.TrimSpace(c.QueryParam("role"))
	search := strings.TrimSpace(c.QueryParam("search"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, total, err := h.Users.List(ctx, page, limit, role, search)
	if err != nil {
		return internalError(c, "list users failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"users":   users,
		"page":    page,
		"limit":   limit,
		"total":   total,
	})
}

type roleChangeReq struct {
	RoleName string `json:"roleName"`
}

// UpdateUserRole moves a user to a new role. Requires users.roles.
func (h *AdminHandler) UpdateUserRole(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		return badRequest(c, "invalid user id")
	}
	var req roleChangeReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RoleName) == "" {
		return badRequest(c, "roleName required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByName(ctx, strings.TrimSpace(req.RoleName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "role not found"})
		}
		return internalError(c, "role lookup failed", err)
	}
	if err := h.Users.UpdateRole(ctx, userID, role.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "user not found"})
		}
		return internalError(c, "update role failed", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return internalError(c, "load user failed", err)
	}

	if au := middleware.CurrentUser(c); au != nil {
		h.Audit.FromRequest(c, au.ID, audit.ActionRoleChange, u.Username+" -> "+role.Name)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user": echo.Map{
			"id":          u.ID,
			"username":    u.Username,
			"email":       u.Email,
			"displayName": u.DisplayName,
			"role":        role.Name,
		},
	})
}

// ListRoles returns every role with its permission set. Requires users.roles.
func (h *AdminHandler) ListRoles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return internalError(c, "list roles failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "roles": roles})
}

// UserLogs returns activity entries, scoped to one user when userId is
// given. Requires logs.read.
func (h *AdminHandler) UserLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw := c.QueryParam("userId"); raw != "" {
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uid == 0 {
			return badRequest(c, "invalid userId")
		}
		logs, err := h.Logs.ListByUser(ctx, uid, 100)
		if err != nil {
			return internalError(c, "load logs failed", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "logs": logs})
	}
	logs, err := h.Logs.ListSystem(ctx, 100)
	if err != nil {
		return internalError(c, "load logs failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "logs": logs})
}

// SystemLogs returns the newest activity entries across all users.
// Requires logs.read.
func (h *AdminHandler) SystemLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	logs, err := h.Logs.ListSystem(ctx, 100)
	if err != nil {
		return internalError(c, "load logs failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "logs": logs})
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
