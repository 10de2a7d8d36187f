package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/foxshrine/shrine-api/internal/config"
	"github.com/foxshrine/shrine-api/internal/handler"
	"github.com/foxshrine/shrine-api/internal/middleware"
	"github.com/foxshrine/shrine-api/internal/model"
)

// Handlers bundles everything route registration needs.
type Handlers struct {
	Auth     *handler.AuthHandler
	Config   *handler.ConfigHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler
	Resolver middleware.UserResolver
}

// Register wires every route with its middleware chain. Public config
// reads additionally go through the Redis response cache; everything goes
// through CORS and the rate limiter.
func Register(e *echo.Echo, cfg config.Config, rdb *redis.Client, h Handlers) {
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))

	e.GET("/health", h.Health.Health)
	e.GET("/test", handler.Test)

	mustAuth := middleware.Authenticate(cfg.JWTSecret, h.Resolver)
	optAuth := middleware.OptionalAuth(cfg.JWTSecret, h.Resolver)
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)

	auth := e.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout, mustAuth)
	auth.GET("/profile", h.Auth.Profile, mustAuth)

	// Reads are open (guest access plus cache); writes are permission-gated.
	e.GET("/config", h.Config.GetAll, optAuth, cache)
	e.GET("/config/:category", h.Config.GetCategory, cache)
	e.PUT("/config/:key", h.Config.PutKey, mustAuth, middleware.RequirePermission(model.PermConfigWrite))
	e.PUT("/config", h.Config.PutBulk, mustAuth, middleware.RequirePermission(model.PermConfigWrite))
	e.DELETE("/config/:key", h.Config.DeleteKey, mustAuth, middleware.RequirePermission(model.PermConfigDelete))

	admin := e.Group("/admin", mustAuth)
	admin.GET("/users", h.Admin.ListUsers, middleware.RequirePermission(model.PermUsersRead))
	admin.PUT("/users/:id/role", h.Admin.UpdateUserRole, middleware.RequirePermission(model.PermUsersRoles))
	admin.GET("/roles", h.Admin.ListRoles, middleware.RequirePermission(model.PermUsersRoles))
	admin.GET("/logs/users", h.Admin.UserLogs, middleware.RequirePermission(model.PermLogsRead))
	admin.GET("/logs/system", h.Admin.SystemLogs, middleware.RequirePermission(model.PermLogsRead))
}
