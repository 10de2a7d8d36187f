package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports process and database status for load balancers and
// monitoring.
type HealthHandler struct {
	DB      *sql.DB
	Version string
	start   time.Time
}

func NewHealthHandler(db *sql.DB, version string) *HealthHandler {
	return &HealthHandler{DB: db, Version: version, start: time.Now()}
}

// Health pings the database; an unreachable store answers 503.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, dbState, code := "ok", "connected", http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		status, dbState, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}
	return c.JSON(code, echo.Map{
		"status":   status,
		"database": dbState,
		"uptime":   time.Since(h.start).Round(time.Second).String(),
		"version":  h.Version,
	})
}

// Test is a static OK payload kept for smoke checks.
func Test(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "message": "shrine api is reachable"})
}
