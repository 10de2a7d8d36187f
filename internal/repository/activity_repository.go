package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/foxshrine/shrine-api/internal/model"
)

// ActivityRepo appends and reads the activity log. Rows are never updated
// or deleted.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// Insert appends one activity row.
func (r *ActivityRepo) Insert(ctx context.Context, userID uint64, action, details, ip, userAgent string, at time.Time) error {
	var uid any
	if userID != 0 {
		uid = userID
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO activity_logs (user_id, action, details, ip, user_agent, created_at) VALUES (?,?,?,?,?,?)",
		uid, action, details, ip, userAgent, at)
	return err
}

// ListByUser returns the newest entries for one user.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.ActivityLogEntry, error) {
	return r.list(ctx,
		"SELECT id, user_id, action, details, ip, user_agent, created_at FROM activity_logs WHERE user_id=? ORDER BY id DESC LIMIT ?",
		userID, limit)
}

// ListSystem returns the newest entries across all users.
func (r *ActivityRepo) ListSystem(ctx context.Context, limit int) ([]model.ActivityLogEntry, error) {
	return r.list(ctx,
		"SELECT id, user_id, action, details, ip, user_agent, created_at FROM activity_logs ORDER BY id DESC LIMIT ?",
		limit)
}

func (r *ActivityRepo) list(ctx context.Context, query string, args ...any) ([]model.ActivityLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.ActivityLogEntry{}
	for rows.Next() {
		var e model.ActivityLogEntry
		var uid sql.NullInt64
		if err := rows.Scan(&e.ID, &uid, &e.Action, &e.Details, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			e.UserID = uint64(uid.Int64)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
