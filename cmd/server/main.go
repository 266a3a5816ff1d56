package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/identity-api/internal/config"
	"github.com/iliyamo/identity-api/internal/database"
	"github.com/iliyamo/identity-api/internal/handler"
	"github.com/iliyamo/identity-api/internal/logging"
	mw "github.com/iliyamo/identity-api/internal/middleware"
	"github.com/iliyamo/identity-api/internal/queue"
	"github.com/iliyamo/identity-api/internal/repository"
	"github.com/iliyamo/identity-api/internal/router"
	"github.com/iliyamo/identity-api/internal/service"
	"github.com/iliyamo/identity-api/internal/token"
)

// store is the identity store plus the seeding operations.
type store interface {
	service.IdentityStore
	database.SeedStore
}

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Env)

	signer, err := token.NewSigner(token.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("token signer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("open identity store")
	}
	defer closeStore()
	if cfg.Seed {
		if err := database.Seed(ctx, users, log); err != nil {
			log.Fatal().Err(err).Msg("seed identity store")
		}
	}

	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb, err = config.NewRedisClient(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
		} else {
			defer rdb.Close()
		}
	}

	opts := service.Options{Logger: log}
	if cfg.AMQPURL != "" {
		pub := service.NewAMQPPublisher(cfg.AMQPURL, service.PublisherOptions{Logger: log})
		defer pub.Close()
		opts.Events = pub
		if cfg.AuditConsumer {
			c := &queue.AuditConsumer{URL: cfg.AMQPURL, Dir: cfg.LogDir, Log: log}
			go func() {
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("audit consumer stopped")
				}
			}()
		}
	}
	auth := service.NewAuthService(users, signer, opts)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(log))
	e.Use(mw.CORS(cfg.CORSAllowOrigins))
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, log), signer, mw.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterAPI(e, signer)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// openStore returns the configured identity store and a close func.
func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return repository.NewMemoryUserRepo(cfg.BcryptCost), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewUserRepo(db, cfg.BcryptCost), func() { _ = db.Close() }, nil
}
