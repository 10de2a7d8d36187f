package model

import (
	"database/sql"
	"time"
)

// User mirrors the 'users' table. FailedAttempts and LockedUntil drive the
// login lockout policy; LockedUntil is NULL while the account is unlocked.
type User struct {
	ID             uint64
	Username       string
	Email          string
	DisplayName    string
	PasswordHash   string
	RoleID         uint64
	IsActive       bool
	FailedAttempts int
	LockedUntil    sql.NullTime
	LastLoginAt    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuthUser is the request-scoped view of an authenticated user. The
// permission set is resolved once at authentication time and is not
// re-checked against live role changes until the token is re-validated.
type AuthUser struct {
	ID          uint64   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the given permission tag is in the set.
func (u *AuthUser) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
