package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/cache"
	"github.com/vblendo1/koisando-green-alien/internal/config"
	"github.com/vblendo1/koisando-green-alien/internal/database"
	"github.com/vblendo1/koisando-green-alien/internal/events"
	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/handlers"
	"github.com/vblendo1/koisando-green-alien/internal/jobs"
	"github.com/vblendo1/koisando-green-alien/internal/log"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
	"github.com/vblendo1/koisando-green-alien/internal/repository/memstore"
	"github.com/vblendo1/koisando-green-alien/internal/server"
	"github.com/vblendo1/koisando-green-alien/internal/service"
	"github.com/vblendo1/koisando-green-alien/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")
	ctx := context.Background()

	var (
		stores repository.Stores
		dbPool *pgxpool.Pool
	)
	if cfg.Postgres.DSN == "" {
		logger.Warn().Msg("postgres dsn not set, using the in-memory store")
		stores = memstore.New().Stores()
	} else {
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres, "members-api")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		stores = repository.NewPostgresStores(dbPool)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, "members-api")
	if err != nil {
		if cfg.Security.RequireSignature {
			logger.Fatal().Err(err).Msg("redis is required for request signatures")
		}
		logger.Warn().Err(err).Msg("redis unavailable, running without cache and events")
	}

	var (
		readCache *cache.ReadCache
		publisher events.Publisher = events.Nop{}
	)
	if redisClient != nil {
		if cfg.Cache.Enabled {
			readCache = cache.NewReadCache(redisClient, cfg.Cache.Prefix, logger)
		}
		publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen)
	}

	var objects service.ObjectPutter
	if cfg.Storage.Endpoint == "" {
		logger.Warn().Msg("storage endpoint not set, uploads are disabled")
	} else {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		objects = objectStore
	}

	entitlements := service.NewEntitlementService(stores.Entitlements, readCache, cfg.Cache.AccessTTL, publisher, logger)
	catalog := service.NewCatalogService(stores.Products, stores.Modules, stores.Lessons, entitlements, readCache, cfg.Cache.CatalogTTL, logger)
	progress := service.NewProgressService(stores.Progress, stores.Lessons, entitlements, logger)
	admin := service.NewAdminService(stores.Products, stores.Modules, stores.Lessons, stores.Users, readCache, publisher, logger)

	feedOpts := feed.DefaultOptions()
	feedOpts.ContinueWatchingLimit = cfg.Feed.ContinueWatchingLimit
	feedOpts.NewItemWindowDays = cfg.Feed.NewItemWindowDays
	feedOpts.DefaultCategory = cfg.Feed.DefaultCategory

	deps := handlers.Deps{
		Config:       cfg,
		Log:          logger,
		Catalog:      catalog,
		Entitlements: entitlements,
		Progress:     progress,
		Feed:         service.NewFeedService(catalog, entitlements, progress, feedOpts, logger),
		Admin:        admin,
		Media:        service.NewMediaService(admin, objects, cfg.HTTP.MaxUploadBytes, logger),
		Users:        stores.Users,
		Redis:        redisClient,
	}
	if dbPool != nil {
		deps.DB = dbPool
	}
	httpServer := server.NewHTTPServer(cfg, logger, handlers.NewHandlerSet(deps))

	var scheduler *jobs.Scheduler
	if cfg.Scheduler.Enabled && redisClient != nil {
		scheduler = jobs.NewScheduler(cfg.Scheduler.IntegritySweep, publisher, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
			scheduler = nil
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
