package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
	pkglog "github.com/iliyamo/auth-service/pkg/log"
)

func main() {
	// .env is a dev convenience; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	log := pkglog.New(cfg.Env)

	accessTTL, err := utils.ParseTTL(cfg.AccessTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ACCESS_TOKEN_TTL")
	}
	refreshTTL, err := utils.ParseTTL(cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REFRESH_TOKEN_TTL")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	// Seed the fixed role catalog; idempotent across restarts.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := roleRepo.EnsureDefaults(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("role catalog bootstrap failed")
	}
	cancel()

	audit := service.NewAMQPPublisher(cfg.RabbitURL)
	var publisher service.Publisher
	if audit != nil {
		publisher = audit
		go queue.StartAuditConsumer(cfg.RabbitURL, log)
	} else {
		log.Info().Msg("RABBITMQ_URL not set; audit events disabled")
	}

	svc := service.NewAuthService(service.Config{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		BcryptCost:      cfg.BcryptCost,
	}, userRepo, roleRepo, sessionRepo, publisher, log)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, svc, cfg, config.LoadRateLimitConfig(), config.NewRedisClient())

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
