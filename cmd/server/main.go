package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dancetime/booking/internal/auth"
	"github.com/dancetime/booking/internal/config"
	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/logging"
	"github.com/dancetime/booking/internal/seed"
	"github.com/dancetime/booking/internal/server"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
	"github.com/dancetime/booking/internal/storage/memory"
	"github.com/dancetime/booking/internal/storage/postgres"
)

const tokenIssuer = "dancetime"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.LogLevel, cfg.Development())
	log.Logger = logger
	if envErr != nil {
		logger.Debug().Msg("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("init storage")
	}
	defer store.Close()

	if cfg.SeedFile != "" {
		seedCatalog(ctx, cfg.SeedFile, store, logger)
	}

	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.SessionBackend).Msg("init sessions")
	}
	defer closeSessions()

	renderer, err := views.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse templates")
	}

	if cfg.AdminBypassEnabled() {
		logger.Warn().Str("username", cfg.AdminUsername).Msg("fixed administrator login is enabled; set ADMIN_PASSWORD= to disable")
	}

	srv := server.New(cfg, server.Deps{
		Store:    store,
		Sessions: sessions,
		Views:    renderer,
		Logger:   logger,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("storage", cfg.StorageDriver).Str("sessions", cfg.SessionBackend).Msg("DanceTime listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.New(), nil
	default:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func seedCatalog(ctx context.Context, path string, store storage.CourseStore, logger zerolog.Logger) {
	cat, err := seed.LoadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("read seed catalog")
		return
	}
	n, err := seed.Apply(ctx, store, cat, logger)
	if err != nil {
		logger.Error().Err(err).Msg("apply seed catalog")
		return
	}
	if n > 0 {
		logger.Info().Int("courses", n).Str("file", path).Msg("seed catalog applied")
	}
}

// openSessions builds the configured session backend and a cleanup func.
func openSessions(ctx context.Context, cfg config.Config, logger zerolog.Logger) (session.Manager, func(), error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) < 32 {
		// Only reachable in development; sessions will not survive a restart.
		secret = securecookie.GenerateRandomKey(32)
		logger.Warn().Msg("SESSION_SECRET is short or unset; using a random per-process key")
	}
	secure := !cfg.Development()

	switch cfg.SessionBackend {
	case config.SessionJWT:
		tokens := auth.NewTokenManager(string(secret), tokenIssuer, cfg.SessionTTL)
		return session.NewJWTManager(tokens, secure), func() {}, nil
	}

	hashKey, blockKey, err := session.DeriveKeys(secret)
	if err != nil {
		return nil, nil, err
	}

	if cfg.SessionBackend == config.SessionRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis client")
			}
		}
		return session.NewRedisManager(client, hashKey, blockKey, cfg.SessionTTL, secure), closeFn, nil
	}

	return session.NewCookieManager(hashKey, blockKey, cfg.SessionTTL, secure), func() {}, nil
}
