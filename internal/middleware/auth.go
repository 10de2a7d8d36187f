package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/token"
)

// AuthUserKey is the echo context key the authenticated user is stored
// under. OptionalAuth leaves it unset for anonymous requests.
const AuthUserKey = "auth_user"

// Error codes returned by the authentication pipeline. TOKEN_EXPIRED is the
// only one a client should answer with a refresh attempt.
const (
	CodeNoToken      = "NO_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeAuthError    = "AUTH_ERROR"
	CodeInsufficient = "INSUFFICIENT_PERMISSIONS"
)

// UserResolver looks up the request-scoped user view by token subject.
type UserResolver interface {
	ResolveAuthUser(ctx context.Context, id uint64) (*model.AuthUser, error)
}

// Authenticate returns the mandatory-auth middleware: requests without a
// valid bearer token are rejected, and successful ones carry a resolved
// *model.AuthUser in the context.
func Authenticate(secret string, resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return fail(c, http.StatusUnauthorized, CodeNoToken, "access token required")
			}
			return verifyAndResolve(c, secret, resolver, raw, next)
		}
	}
}

// OptionalAuth is the best-effort variant: a missing token proceeds with no
// user attached, but a token that is present must still verify.
func OptionalAuth(secret string, resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return next(c)
			}
			return verifyAndResolve(c, secret, resolver, raw, next)
		}
	}
}

// verifyAndResolve implements the shared token-verify and user-resolution
// steps of both pipeline variants.
func verifyAndResolve(c echo.Context, secret string, resolver UserResolver, raw string, next echo.HandlerFunc) error {
	userID, err := token.ParseAccess(secret, raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return fail(c, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
		}
		return fail(c, http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
	}
	au, err := resolver.ResolveAuthUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, CodeUserNotFound, "user not found or inactive")
		}
		return fail(c, http.StatusInternalServerError, CodeAuthError, "authentication failed")
	}
	c.Set(AuthUserKey, au)
	return next(c)
}

// CurrentUser returns the authenticated user attached by Authenticate or
// OptionalAuth, or nil for anonymous requests.
func CurrentUser(c echo.Context) *model.AuthUser {
	if au, ok := c.Get(AuthUserKey).(*model.AuthUser); ok {
		return au
	}
	return nil
}

func bearer(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message, "code": code})
}
