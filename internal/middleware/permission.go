package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePermission returns a middleware that rejects authenticated users
// whose permission set lacks the given tag. The 403 body echoes the
// required permission and the caller's actual set. Must run after
// Authenticate.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			au := CurrentUser(c)
			if au == nil {
				return fail(c, http.StatusUnauthorized, CodeNoToken, "access token required")
			}
			if !au.HasPermission(perm) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"success":     false,
					"message":     "insufficient permissions",
					"code":        CodeInsufficient,
					"required":    perm,
					"permissions": au.Permissions,
				})
			}
			return next(c)
		}
	}
}
