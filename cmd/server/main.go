package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/avdeck/cueroom/internal/adapters/http"
	"github.com/avdeck/cueroom/internal/adapters/ws"
	"github.com/avdeck/cueroom/internal/app"
	"github.com/avdeck/cueroom/internal/auth"
	"github.com/avdeck/cueroom/internal/config"
	"github.com/avdeck/cueroom/internal/media"
	"github.com/avdeck/cueroom/internal/session"
	"github.com/avdeck/cueroom/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Persistence. An empty database_url runs on the in-memory store,
	// which is enough for local development.
	var st store.Store
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("no database_url configured, state will not survive a restart")
		st = store.NewMemory()
	} else {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, "db/migrations"); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		st = store.NewPostgres(db)
	}

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer sessions.Close()

	var mediaStore *media.S3
	if cfg.S3.Endpoint != "" {
		mediaStore, err = media.NewS3(ctx, media.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to object storage")
		}
	} else {
		log.Warn().Msg("no s3 endpoint configured, media uploads disabled")
	}

	registry := app.NewRegistry()
	var dispatcherMedia app.MediaStore
	var handlersMedia router.MediaService
	if mediaStore != nil {
		dispatcherMedia = mediaStore
		handlersMedia = mediaStore
	}
	dispatcher := app.NewDispatcher(registry, st, dispatcherMedia)

	authSvc := auth.NewService(st)
	handlers := router.NewHandlers(st, authSvc, sessions, handlersMedia)
	wsCtl := ws.NewController(dispatcher, ws.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})

	r := router.SetupRouter(ctx, cfg, handlers, wsCtl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Cueroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
