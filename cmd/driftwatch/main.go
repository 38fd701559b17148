package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleister1102/driftwatch/internal/api"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/fetcher"
	"github.com/aleister1102/driftwatch/internal/filter"
	"github.com/aleister1102/driftwatch/internal/logger"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/notifier"
	"github.com/aleister1102/driftwatch/internal/pipeline"
	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/rslimiter"
	"github.com/aleister1102/driftwatch/internal/scheduler"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/worker"
)

func main() {
	configFile := flag.String("config", "", "Path to the YAML/JSON configuration file. If not set, searches default locations.")
	configFileAlias := flag.String("c", "", "Alias for --config")
	flag.Parse()

	if *configFile == "" && *configFileAlias != "" {
		*configFile = *configFileAlias
	}

	gCfg, err := config.LoadGlobalConfig(config.GetConfigPath(*configFile))
	if err != nil {
		log.Fatalf("[FATAL] Could not load config: %v", err)
	}

	zLogger, err := logger.New(gCfg.Log)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}
	zLogger.Info().Msg("driftwatch starting")

	st, err := store.NewSQLiteStore(gCfg.Storage, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to open watch store")
	}
	defer st.Close()

	registry := fetcher.NewRegistry(gCfg.Fetch.DefaultBackend, zLogger)
	httpBackend, err := fetcher.NewHTTPBackend(gCfg.Fetch, gCfg.Proxies, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to build HTTP fetch backend")
	}
	registry.Register(httpBackend)

	var browserBackend *fetcher.BrowserBackend
	if gCfg.Browser.Enabled {
		browserBackend = fetcher.NewBrowserBackend(gCfg.Browser, zLogger)
		if err := browserBackend.Start(); err != nil {
			zLogger.Fatal().Err(err).Msg("Failed to start browser pool")
		}
		defer browserBackend.Stop()
		registry.Register(browserBackend)
	}

	checkQueue := queue.NewPriorityQueue()
	running := worker.NewRunningSet()
	engine := scheduler.NewEngine(gCfg, st, checkQueue, running, zLogger)

	dispatch := notifier.NewDispatchQueue(gCfg.Notification.QueueSize)
	deliverer := notifier.NewWebhookDeliverer(zLogger, &http.Client{
		Timeout: time.Duration(gCfg.Notification.DeliveryTimeoutSeconds) * time.Second,
	})
	consumer := notifier.NewConsumer(gCfg.Notification, dispatch, deliverer, st, zLogger)

	checkPipeline := pipeline.NewPipeline(gCfg, st, registry, filter.NewTextFilter(zLogger), dispatch, engine, zLogger)
	pool, err := worker.NewPool(gCfg.Worker.PoolStrategy, checkQueue, running, func(ctx context.Context, item models.QueueItem) {
		checkPipeline.Run(ctx, item)
	}, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to build worker pool")
	}

	limiter := rslimiter.NewResourceLimiter(gCfg.Limiter, zLogger)
	limiter.Start()
	defer limiter.Stop()

	sched := scheduler.NewScheduler(gCfg, st, engine, pool, consumer, limiter, zLogger)
	sched.Start()

	var apiServer *http.Server
	if gCfg.API.Enabled {
		srv := api.New(gCfg.API, st, engine, pool, consumer)
		apiServer = &http.Server{Addr: gCfg.API.ListenAddr, Handler: srv.Router()}
		go func() {
			zLogger.Info().Str("addr", gCfg.API.ListenAddr).Msg("API server listening")
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zLogger.Error().Err(err).Msg("API server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zLogger.Info().Str("signal", sig.String()).Msg("Shutting down")

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			zLogger.Warn().Err(err).Msg("API shutdown error")
		}
		cancel()
	}

	sched.Stop(true)
	dispatch.Close()
	zLogger.Info().Msg("driftwatch stopped")
}
