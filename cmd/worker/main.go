package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/makercost/makercost/internal/app"
	"github.com/makercost/makercost/internal/catalog"
	"github.com/makercost/makercost/internal/platform/cache"
	"github.com/makercost/makercost/internal/platform/db"
	"github.com/makercost/makercost/internal/quote"
	"github.com/makercost/makercost/internal/store"
	"github.com/makercost/makercost/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	snapshots := store.NewRedisSnapshots(redisClient, 0)

	rates := cfg.Rates()

	quoteStore := quote.NewStore(quote.StoreConfig{
		Snapshots:     snapshots,
		Repo:          quote.NewRepository(pool),
		Logger:        logger,
		Rates:         rates,
		RemoteTimeout: cfg.RemoteCallTimeout,
	})

	catalogStore := catalog.NewStore(catalog.StoreConfig{
		Snapshots:     snapshots,
		Repo:          catalog.NewRepository(pool),
		Logger:        logger,
		RemoteTimeout: cfg.RemoteCallTimeout,
	})

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeQuotePush, Handler: jobs.NewQuotePushHandler(logger, quoteStore)},
			{Type: jobs.TaskTypeCatalogRefresh, Handler: jobs.NewCatalogRefreshHandler(logger, catalogStore)},
			{Type: jobs.TaskTypeCatalogRefreshAll, Handler: jobs.NewCatalogRefreshAllHandler(logger, catalog.NewUserLister(pool), jobClient)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewCatalogRefreshAllTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
