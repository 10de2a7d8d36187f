package model

import "time"

// Session mirrors the 'sessions' table. Token values are stored as SHA-256
// hashes so a leaked table cannot be replayed. Logout flips IsActive instead
// of deleting the row, keeping the audit trail intact.
type Session struct {
	ID          string
	UserID      uint64
	TokenHash   string
	RefreshHash string
	IP          string
	UserAgent   string
	ExpiresAt   time.Time
	IsActive    bool
	CreatedAt   time.Time
}
