package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/foxshrine/shrine-api/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,display_name,password_hash,role_id,is_active,failed_attempts,locked_until,last_login_at,created_at,updated_at"

// Create inserts a user with the given role and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, email, displayName, passwordHash string, roleID uint64) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, display_name, password_hash, role_id) VALUES (?,?,?,?,?)",
		username, email, displayName, passwordHash, roleID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByLogin fetches an active user whose username or email matches the
// supplied login string.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE (username=? OR email=?) AND is_active=1 LIMIT 1",
		login, strings.ToLower(login)).Scan(
		&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.RoleID,
		&u.IsActive, &u.FailedAttempts, &u.LockedUntil, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(
		&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.RoleID,
		&u.IsActive, &u.FailedAttempts, &u.LockedUntil, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// ResolveAuthUser loads the request-scoped user view: identity attributes,
// role name and the role's permission set. Inactive or missing users map
// to sql.ErrNoRows so the middleware can answer USER_NOT_FOUND uniformly.
func (r *UserRepo) ResolveAuthUser(ctx context.Context, id uint64) (*model.AuthUser, error) {
	var au model.AuthUser
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.display_name, r.name
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.id=? AND u.is_active=1 LIMIT 1`,
		id).Scan(&au.ID, &au.Username, &au.Email, &au.DisplayName, &au.Role)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT rp.permission FROM role_permissions rp
		 JOIN users u ON u.role_id = rp.role_id WHERE u.id=?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		au.Permissions = append(au.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &au, nil
}

// RecordLoginFailure bumps the failed-attempt counter and, when the
// threshold is reached, stamps the lock-until timestamp.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id uint64, attempts int, lockedUntil sql.NullTime) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=?, locked_until=? WHERE id=?",
		attempts, lockedUntil, id)
	return err
}

// RecordLoginSuccess clears the lockout state and stamps last login.
func (r *UserRepo) RecordLoginSuccess(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=0, locked_until=NULL, last_login_at=? WHERE id=?",
		time.Now().UTC(), id)
	return err
}

// UserSummary is the row shape returned by the admin user listing.
type UserSummary struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// List returns a page of users with the total match count. role filters by
// role name; search matches username or email as a substring.
func (r *UserRepo) List(ctx context.Context, page, limit int, role, search string) ([]UserSummary, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if role != "" {
		where += " AND ro.name=?"
		args = append(args, role)
	}
	if search != "" {
		where += " AND (u.username LIKE ? OR u.email LIKE ?)"
		like := "%" + search + "%"
		args = append(args, like, like)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users u JOIN roles ro ON ro.id=u.role_id "+where,
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.display_name, ro.name, u.is_active, u.last_login_at, u.created_at
		 FROM users u JOIN roles ro ON ro.id=u.role_id `+where+
			" ORDER BY u.id LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []UserSummary{}
	for rows.Next() {
		var s UserSummary
		var lastLogin sql.NullTime
		if err := rows.Scan(&s.ID, &s.Username, &s.Email, &s.DisplayName, &s.Role,
			&s.IsActive, &lastLogin, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			s.LastLoginAt = &t
		}
		users = append(users, s)
	}
	return users, total, rows.Err()
}

// UpdateRole moves a user to another role. Returns ErrNotFound when the
// user does not exist.
func (r *UserRepo) UpdateRole(ctx context.Context, userID, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role_id=? WHERE id=?", roleID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "no such user" from "role unchanged".
		var exists int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}
