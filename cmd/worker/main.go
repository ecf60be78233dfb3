package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/config"
	"github.com/vblendo1/koisando-green-alien/internal/database"
	"github.com/vblendo1/koisando-green-alien/internal/log"
	"github.com/vblendo1/koisando-green-alien/internal/queue"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
	"github.com/vblendo1/koisando-green-alien/internal/storage"
	"github.com/vblendo1/koisando-green-alien/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis, "members-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	// The sweep only makes sense against the shared database.
	var integrity repository.IntegrityStore
	if cfg.Postgres.DSN != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, "members-worker")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer pool.Close()
		integrity = repository.NewIntegrityRepository(pool)
	} else {
		logger.Warn().Msg("postgres dsn not set, integrity sweeps are skipped")
	}

	var media tasks.MediaRemover
	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		media = objectStore
	}

	var purger tasks.CachePurger
	if cfg.Cache.Enabled {
		purger = cache.NewReadCache(client, cfg.Cache.Prefix, logger)
	}

	processor := tasks.NewProcessor(media, purger, integrity, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Events.Stream,
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
		MinIdle:       cfg.Worker.MinIdle,
	}, logger, processor)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
