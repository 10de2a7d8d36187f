package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/foxshrine/shrine-api/internal/audit"
	"github.com/foxshrine/shrine-api/internal/middleware"
	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/repository"
	"github.com/foxshrine/shrine-api/internal/sitecfg"
)

// defaultCategory is applied when a write omits the category.
const defaultCategory = "general"

// ConfigStore is the persistence surface of the site configuration
// endpoints. *repository.ConfigRepo satisfies it.
type ConfigStore interface {
	ListActive(ctx context.Context) ([]model.ConfigEntry, error)
	ListByCategory(ctx context.Context, category string) ([]model.ConfigEntry, error)
	Upsert(ctx context.Context, key, value, category, description, updatedBy string) (model.ConfigEntry, error)
	SoftDelete(ctx context.Context, key, updatedBy string) (model.ConfigEntry, error)
}

// ConfigHandler serves the site configuration endpoints.
type ConfigHandler struct {
	Store ConfigStore
	Audit Auditor
}

func NewConfigHandler(store ConfigStore, a Auditor) *ConfigHandler {
	return &ConfigHandler{Store: store, Audit: a}
}

// putConfigReq uses json.RawMessage for the value so an absent value (nil)
// is distinguishable from an explicit JSON null ("null"): null is a legal
// stored value, absence is a validation error.
type putConfigReq struct {
	Value       json.RawMessage `json:"value"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

type bulkConfigReq struct {
	Configs []bulkConfigEntry `json:"configs"`
}

type bulkConfigEntry struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

// GetAll returns the full active configuration as a nested structure.
// Reads by authenticated callers are audited; guest reads are not.
func (h *ConfigHandler) GetAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Store.ListActive(ctx)
	if err != nil {
		return internalError(c, "load configuration failed", err)
	}
	data := sitecfg.Materialize(entries)

	au := middleware.CurrentUser(c)
	if au != nil {
		h.Audit.FromRequest(c, au.ID, audit.ActionConfigRead, fmt.Sprintf("read %d entries", len(entries)))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC(),
		"count":     len(entries),
		"user":      au,
	})
}

// GetCategory returns one category's entries as a nested structure.
func (h *ConfigHandler) GetCategory(c echo.Context) error {
	category := c.Param("category")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Store.ListByCategory(ctx, category)
	if err != nil {
		return internalError(c, "load configuration failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"data":      sitecfg.Materialize(entries),
		"category":  category,
		"timestamp": time.Now().UTC(),
		"count":     len(entries),
	})
}

// PutKey upserts a single configuration value. Requires config.write.
func (h *ConfigHandler) PutKey(c echo.Context) error {
	var req putConfigReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Value == nil {
		return badRequest(c, "value is required")
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		return badRequest(c, "invalid value")
	}
	key := sitecfg.Normalize(c.Param("key"))
	category := req.Category
	if category == "" {
		category = defaultCategory
	}
	au := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entry, err := h.Store.Upsert(ctx, key, sitecfg.Serialize(value), category, req.Description, au.Username)
	if err != nil {
		return internalError(c, "save configuration failed", err)
	}

	h.Audit.FromRequest(c, au.ID, audit.ActionConfigUpdate, "updated "+key)
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"data":      entry,
		"message":   "configuration updated",
		"timestamp": time.Now().UTC(),
	})
}

// PutBulk upserts a batch of configuration values sequentially. Entries
// missing a key or a value are skipped silently; a mid-batch store failure
// leaves earlier entries persisted. One audit entry summarizes the batch.
func (h *ConfigHandler) PutBulk(c echo.Context) error {
	var req bulkConfigReq
	if err := c.Bind(&req); err != nil || req.Configs == nil {
		return badRequest(c, "configs array required")
	}
	au := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	saved := []model.ConfigEntry{}
	for _, item := range req.Configs {
		if item.Key == "" || item.Value == nil {
			continue
		}
		var value any
		if err := json.Unmarshal(item.Value, &value); err != nil {
			continue
		}
		category := item.Category
		if category == "" {
			category = defaultCategory
		}
		entry, err := h.Store.Upsert(ctx, sitecfg.Normalize(item.Key),
			sitecfg.Serialize(value), category, item.Description, au.Username)
		if err != nil {
			return internalError(c, "save configuration failed", err)
		}
		saved = append(saved, entry)
	}

	h.Audit.FromRequest(c, au.ID, audit.ActionConfigUpdate, fmt.Sprintf("bulk updated %d entries", len(saved)))
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"data":      saved,
		"message":   "configuration updated",
		"count":     len(saved),
		"timestamp": time.Now().UTC(),
	})
}

// DeleteKey soft-deletes a configuration entry and returns its prior
// state. Requires config.delete. Misses are not audited.
func (h *ConfigHandler) DeleteKey(c echo.Context) error {
	key := sitecfg.Normalize(c.Param("key"))
	au := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	prior, err := h.Store.SoftDelete(ctx, key, au.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "configuration key not found"})
		}
		return internalError(c, "delete configuration failed", err)
	}

	h.Audit.FromRequest(c, au.ID, audit.ActionConfigDelete, "deleted "+key)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"key":      prior.Key,
			"value":    sitecfg.Coerce(prior.Value),
			"category": prior.Category,
		},
		"message":   "configuration deleted",
		"timestamp": time.Now().UTC(),
	})
}
