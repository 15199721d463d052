package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/makercost/makercost/internal/account"
	"github.com/makercost/makercost/internal/app"
	"github.com/makercost/makercost/internal/autosave"
	"github.com/makercost/makercost/internal/catalog"
	"github.com/makercost/makercost/internal/observability"
	"github.com/makercost/makercost/internal/platform/cache"
	"github.com/makercost/makercost/internal/platform/db"
	"github.com/makercost/makercost/internal/quote"
	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
	"github.com/makercost/makercost/internal/syncer"
	"github.com/makercost/makercost/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	// Snapshots fall back to process memory when Redis is unreachable: the
	// stores stay local-first either way, restore across restarts is lost.
	var snapshots store.Snapshots
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, snapshots held in memory", slog.Any("error", err))
		snapshots = store.NewMemorySnapshots()
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		snapshots = store.NewRedisSnapshots(redisClient, 0)
	}

	notifier := shared.LogNotifier{Logger: logger}
	metrics := observability.NewMetrics()

	rates := cfg.Rates()

	accountStore := account.NewStore(account.StoreConfig{
		Snapshots:     snapshots,
		Repo:          account.NewRepository(pool),
		Logger:        logger,
		RemoteTimeout: cfg.RemoteCallTimeout,
	})

	quoteStore := quote.NewStore(quote.StoreConfig{
		Snapshots:     snapshots,
		Repo:          quote.NewRepository(pool),
		Notifier:      notifier,
		Logger:        logger,
		Rates:         rates,
		Gate:          accountStore,
		OnCreate:      accountStore.RecordQuoteCreated,
		RemoteTimeout: cfg.RemoteCallTimeout,
		Currency:      cfg.DefaultCurrency,
	})

	catalogStore := catalog.NewStore(catalog.StoreConfig{
		Snapshots:     snapshots,
		Repo:          catalog.NewRepository(pool),
		Notifier:      notifier,
		Logger:        logger,
		RemoteTimeout: cfg.RemoteCallTimeout,
	})

	orchestrator := syncer.New(syncer.Config{
		Sources:     []syncer.Source{quoteStore, catalogStore, accountStore},
		Logger:      logger,
		Notifier:    notifier,
		SettleDelay: cfg.SyncSettleDelay,
		PassTimeout: cfg.SyncPassTimeout,
		OnPass:      func(state syncer.State) { metrics.RecordSyncPass(string(state)) },
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

	controller := autosave.New(autosave.Config{
		Drafts:   quoteStore,
		Pusher:   jobClient,
		Logger:   logger,
		Interval: cfg.AutosaveInterval,
		OnSave:   metrics.RecordAutosave,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		QuoteHandler:    quote.NewHandler(logger, quoteStore, rates),
		CatalogHandler:  catalog.NewHandler(logger, catalogStore),
		AccountHandler:  account.NewHandler(logger, accountStore),
		SyncHandler:     syncer.NewHandler(logger, orchestrator),
		AutosaveHandler: autosave.NewHandler(logger, controller),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Orchestrator:    orchestrator,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
