package model

import "time"

// ActivityLogEntry mirrors the 'activity_logs' table. Rows are append-only
// and written best-effort: a failed write never fails the triggering request.
type ActivityLogEntry struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}
