package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.Info().Str("environment", string(config.GetEnvironment())).Msg("configuration loaded")

	db, err := database.Open(cfg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}()

	if err := database.RunMigrations(db, "migrations"); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	store, err := newStore(context.Background(), cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize image storage")
	}

	srv := server.New(cfg, db, rdb, store)

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logging.Fatal().Err(err).Msg("server error")
		}
		return
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
		return
	}
	logging.Info().Msg("server stopped")
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend != "s3" {
		return storage.NewLocalStore(cfg.Storage.MediaRoot, cfg.Storage.MediaURL)
	}

	s3cfg, err := config.NewS3Config(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	if cfg.S3.ApplyPublicPolicy {
		if err := s3cfg.SetupBucketPolicy(ctx); err != nil {
			return nil, fmt.Errorf("failed to apply bucket policy: %w", err)
		}
	}
	logging.Info().Str("bucket", s3cfg.BucketName).Msg("using s3 image storage")
	return storage.NewS3Store(s3cfg.Client, s3cfg.BucketName, s3cfg.PublicBaseURL), nil
}
