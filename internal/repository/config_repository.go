package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/foxshrine/shrine-api/internal/model"
)

// ConfigRepo persists site configuration rows. At most one active row can
// exist per key: Upsert updates the active row in place when present and
// inserts otherwise, and SoftDelete flips the active flag instead of
// removing the row.
type ConfigRepo struct{ DB *sql.DB }

func NewConfigRepo(db *sql.DB) *ConfigRepo { return &ConfigRepo{DB: db} }

const configColumns = "id,cfg_key,cfg_value,category,description,is_active,updated_by,updated_at"

// ListActive returns all active config rows in key order.
func (r *ConfigRepo) ListActive(ctx context.Context) ([]model.ConfigEntry, error) {
	return r.list(ctx,
		"SELECT "+configColumns+" FROM site_config WHERE is_active=1 ORDER BY cfg_key")
}

// ListByCategory returns the active rows of a single category.
func (r *ConfigRepo) ListByCategory(ctx context.Context, category string) ([]model.ConfigEntry, error) {
	return r.list(ctx,
		"SELECT "+configColumns+" FROM site_config WHERE is_active=1 AND category=? ORDER BY cfg_key",
		category)
}

// GetActive fetches the active row for a key, sql.ErrNoRows when absent.
func (r *ConfigRepo) GetActive(ctx context.Context, key string) (model.ConfigEntry, error) {
	var e model.ConfigEntry
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+configColumns+" FROM site_config WHERE cfg_key=? AND is_active=1 LIMIT 1",
		key).Scan(&e.ID, &e.Key, &e.Value, &e.Category, &e.Description, &e.IsActive, &e.UpdatedBy, &e.UpdatedAt)
	return e, err
}

// Upsert updates the active row for a key or inserts one when absent, and
// returns the persisted row.
func (r *ConfigRepo) Upsert(ctx context.Context, key, value, category, description, updatedBy string) (model.ConfigEntry, error) {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE site_config SET cfg_value=?, category=?, description=?, updated_by=?, updated_at=? WHERE cfg_key=? AND is_active=1",
		value, category, description, updatedBy, now, key)
	if err != nil {
		return model.ConfigEntry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.ConfigEntry{}, err
	}
	if n == 0 {
		if _, err := r.DB.ExecContext(ctx,
			"INSERT INTO site_config (cfg_key, cfg_value, category, description, updated_by, updated_at) VALUES (?,?,?,?,?,?)",
			key, value, category, description, updatedBy, now); err != nil {
			return model.ConfigEntry{}, err
		}
	}
	return r.GetActive(ctx, key)
}

// SoftDelete deactivates the active row for a key, stamping who removed it,
// and returns the row's prior state. ErrNotFound when no active row matched.
func (r *ConfigRepo) SoftDelete(ctx context.Context, key, updatedBy string) (model.ConfigEntry, error) {
	prior, err := r.GetActive(ctx, key)
	if err == sql.ErrNoRows {
		return model.ConfigEntry{}, ErrNotFound
	}
	if err != nil {
		return model.ConfigEntry{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE site_config SET is_active=0, updated_by=?, updated_at=? WHERE id=? AND is_active=1",
		updatedBy, time.Now().UTC(), prior.ID)
	if err != nil {
		return model.ConfigEntry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.ConfigEntry{}, err
	}
	if n == 0 {
		// Raced with another delete; the row is already gone.
		return model.ConfigEntry{}, ErrNotFound
	}
	return prior, nil
}

func (r *ConfigRepo) list(ctx context.Context, query string, args ...any) ([]model.ConfigEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.ConfigEntry{}
	for rows.Next() {
		var e model.ConfigEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.Value, &e.Category, &e.Description,
			&e.IsActive, &e.UpdatedBy, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
