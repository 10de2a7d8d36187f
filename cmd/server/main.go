package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/foxshrine/shrine-api/internal/audit"
	"github.com/foxshrine/shrine-api/internal/config"
	"github.com/foxshrine/shrine-api/internal/database"
	"github.com/foxshrine/shrine-api/internal/handler"
	"github.com/foxshrine/shrine-api/internal/logger"
	"github.com/foxshrine/shrine-api/internal/repository"
	"github.com/foxshrine/shrine-api/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()
	logger.Init(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	sessions := repository.NewSessionRepo(db)
	configs := repository.NewConfigRepo(db)
	activity := repository.NewActivityRepo(db)

	recorder := audit.NewRecorder(cfg.AMQPURL, activity)
	go audit.StartConsumer(cfg.AMQPURL, activity)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unreachable; response cache and rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, rdb, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, roles, sessions, recorder),
		Config:   handler.NewConfigHandler(configs, recorder),
		Admin:    handler.NewAdminHandler(users, roles, activity, recorder),
		Health:   handler.NewHealthHandler(db, cfg.Version),
		Resolver: users,
	})

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
