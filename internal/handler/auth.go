package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/foxshrine/shrine-api/internal/audit"
	"github.com/foxshrine/shrine-api/internal/config"
	"github.com/foxshrine/shrine-api/internal/middleware"
	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/repository"
	"github.com/foxshrine/shrine-api/internal/token"
)

// Lockout policy: Nth consecutive failure locks the account.
const (
	maxLoginAttempts = 5
	lockoutWindow    = 30 * time.Minute
)

// UserStore is the user persistence surface the auth endpoints need.
// *repository.UserRepo satisfies it; tests inject mocks.
type UserStore interface {
	Create(ctx context.Context, username, email, displayName, passwordHash string, roleID uint64) (uint64, error)
	GetByLogin(ctx context.Context, login string) (model.User, error)
	ResolveAuthUser(ctx context.Context, id uint64) (*model.AuthUser, error)
	RecordLoginFailure(ctx context.Context, id uint64, attempts int, lockedUntil sql.NullTime) error
	RecordLoginSuccess(ctx context.Context, id uint64) error
}

// RoleStore resolves role names for registration and role changes.
type RoleStore interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
}

// SessionStore persists issued token pairs.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	Rotate(ctx context.Context, oldRefreshHash, tokenHash, refreshHash string, expiresAt time.Time) error
	Deactivate(ctx context.Context, tokenHash string) error
}

// Auditor records best-effort activity entries.
type Auditor interface {
	FromRequest(c echo.Context, userID uint64, action, details string)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Roles    RoleStore
	Sessions SessionStore
	Audit    Auditor
}

func NewAuthHandler(cfg config.Config, u UserStore, r RoleStore, s SessionStore, a Auditor) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Roles: r, Sessions: s, Audit: a}
}

// ----- DTOs -----

type registerReq struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// validPassword requires at least 8 characters with a letter and a digit.
func validPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// Register: validate input, create user with the default role and return a
// fresh token pair alongside a persisted session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !usernamePattern.MatchString(req.Username) {
		return badRequest(c, "username must be 3-30 alphanumeric characters")
	}
	if !emailPattern.MatchString(req.Email) {
		return badRequest(c, "valid email required")
	}
	if !validPassword(req.Password) {
		return badRequest(c, "password must be at least 8 characters with a letter and a digit")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByName(ctx, model.DefaultRoleName)
	if err != nil {
		return internalError(c, "default role lookup failed", err)
	}
	hash, err := token.HashPassword(req.Password)
	if err != nil {
		return internalError(c, "password hash failed", err)
	}
	uid, err := h.Users.Create(ctx, req.Username, req.Email, displayName, hash, role.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"success": false, "message": "username or email already registered"})
		}
		return internalError(c, "create user failed", err)
	}

	pair, err := h.issueSession(ctx, c, uid)
	if err != nil {
		return internalError(c, "issue tokens failed", err)
	}
	au, err := h.Users.ResolveAuthUser(ctx, uid)
	if err != nil {
		return internalError(c, "load user failed", err)
	}

	h.Audit.FromRequest(c, uid, audit.ActionRegister, "new account "+req.Username)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": au, "tokens": pair})
}

// Login: check lockout, verify the password, maintain the failure counter
// and return a new token pair. Credential failures answer with one uniform
// message so callers cannot probe which accounts exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return badRequest(c, "username and password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invalidCredentials(c)
		}
		return internalError(c, "query failed", err)
	}

	now := time.Now().UTC()
	if u.LockedUntil.Valid && u.LockedUntil.Time.After(now) {
		return c.JSON(http.StatusLocked, echo.Map{
			"success": false,
			"message": "account temporarily locked, try again later",
		})
	}

	if !token.VerifyPassword(u.PasswordHash, req.Password) {
		attempts := u.FailedAttempts + 1
		var lockedUntil sql.NullTime
		if attempts >= maxLoginAttempts {
			lockedUntil = sql.NullTime{Time: now.Add(lockoutWindow), Valid: true}
		}
		_ = h.Users.RecordLoginFailure(ctx, u.ID, attempts, lockedUntil)
		return invalidCredentials(c)
	}

	if err := h.Users.RecordLoginSuccess(ctx, u.ID); err != nil {
		return internalError(c, "update login state failed", err)
	}
	pair, err := h.issueSession(ctx, c, u.ID)
	if err != nil {
		return internalError(c, "issue tokens failed", err)
	}
	au, err := h.Users.ResolveAuthUser(ctx, u.ID)
	if err != nil {
		return internalError(c, "load user failed", err)
	}

	h.Audit.FromRequest(c, u.ID, audit.ActionLogin, "login "+u.Username)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": au, "tokens": pair})
}

// Refresh: verify the refresh token and rotate the session row in one
// compare-and-swap update. Losing a concurrent rotation race looks the same
// as presenting a stale token: 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refreshToken required")
	}
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := token.ParseRefresh(h.Cfg.JWTSecret, raw)
	if err != nil {
		return unauthorized(c, "invalid refresh token")
	}
	pair, err := token.NewPair(h.Cfg.JWTSecret, userID, h.Cfg.AccessTTL, h.Cfg.RefreshTTL)
	if err != nil {
		return internalError(c, "issue tokens failed", err)
	}
	err = h.Sessions.Rotate(ctx, token.HashRaw(raw),
		token.HashRaw(pair.AccessToken), token.HashRaw(pair.RefreshToken),
		time.Now().UTC().Add(h.Cfg.AccessTTL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unauthorized(c, "invalid refresh token")
		}
		return internalError(c, "rotate session failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tokens": pair})
}

// Logout: deactivate the session matching the presented access token.
// Idempotent: succeeds whether or not a session row matched.
func (h *AuthHandler) Logout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	_ = h.Sessions.Deactivate(ctx, token.HashRaw(raw))

	if au := middleware.CurrentUser(c); au != nil {
		h.Audit.FromRequest(c, au.ID, audit.ActionLogout, "logout "+au.Username)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Profile returns the request-scoped user resolved by the auth middleware.
func (h *AuthHandler) Profile(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": middleware.CurrentUser(c)})
}

// issueSession creates a token pair plus its session row.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, userID uint64) (token.Pair, error) {
	pair, err := token.NewPair(h.Cfg.JWTSecret, userID, h.Cfg.AccessTTL, h.Cfg.RefreshTTL)
	if err != nil {
		return token.Pair{}, err
	}
	s := &model.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   token.HashRaw(pair.AccessToken),
		RefreshHash: token.HashRaw(pair.RefreshToken),
		IP:          c.RealIP(),
		UserAgent:   c.Request().Header.Get("User-Agent"),
		ExpiresAt:   time.Now().UTC().Add(h.Cfg.AccessTTL),
	}
	if err := h.Sessions.Create(ctx, s); err != nil {
		return token.Pair{}, err
	}
	return pair, nil
}

// ----- shared response helpers -----

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": msg})
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": msg})
}

func invalidCredentials(c echo.Context) error {
	return unauthorized(c, "invalid credentials")
}

func internalError(c echo.Context, msg string, err error) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"success": false,
		"message": msg,
		"error":   fmt.Sprint(err),
	})
}
