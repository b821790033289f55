package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dontforget-backend/api/controllers"
	"github.com/angelmondragon/dontforget-backend/api/routes"
	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/internal/notify"
	"github.com/angelmondragon/dontforget-backend/internal/orchestrator"
	"github.com/angelmondragon/dontforget-backend/internal/regions"
	"github.com/angelmondragon/dontforget-backend/internal/scheduler"
	"github.com/angelmondragon/dontforget-backend/pkg/config"
	"github.com/angelmondragon/dontforget-backend/pkg/db"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/metrics"
	"github.com/angelmondragon/dontforget-backend/pkg/migrate"
	"github.com/angelmondragon/dontforget-backend/pkg/pubsub"
	"github.com/angelmondragon/dontforget-backend/pkg/redis"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	checks := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	// Pub/Sub is optional in local development: without a project the engine
	// runs with no-op ports and skips delivery entirely.
	var notificationPort scheduler.NotificationPort = notify.NopPort{}
	var deliverer orchestrator.AlertDeliverer = notify.NopPort{}
	var locationPort regions.LocationPort = regions.NopPort{}
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer pubsubClient.Close()
		checks["pubsub"] = pubsubClient

		notifyPublisher, err := notify.NewPublisher(pubsubClient.NotificationPublisher())
		if err != nil {
			logg.Error(context.Background(), "failed to create notification publisher", err)
			os.Exit(1)
		}
		commandPublisher, err := regions.NewCommandPublisher(pubsubClient.GeofenceCommandPublisher())
		if err != nil {
			logg.Error(context.Background(), "failed to create geofence command publisher", err)
			os.Exit(1)
		}
		notificationPort = notifyPublisher
		deliverer = notifyPublisher
		locationPort = commandPublisher
	} else {
		logg.Warn(context.Background(), "no GCP project configured, notification ports disabled")
	}

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	snapshotRepo, err := items.NewSnapshotRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot repository", err)
		os.Exit(1)
	}
	store, err := items.NewStore(items.StoreParams{
		Port:    snapshotRepo,
		Logger:  logg,
		Metrics: engineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create item store", err)
		os.Exit(1)
	}
	if err := store.Load(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load item snapshot", err)
		os.Exit(1)
	}

	location, err := cfg.Notify.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to resolve notify timezone", err)
		os.Exit(1)
	}
	schedulerSvc, err := scheduler.NewService(scheduler.ServiceParams{
		Port:      notificationPort,
		Logger:    logg,
		Metrics:   engineMetrics,
		HourOfDay: cfg.Notify.HourOfDay,
		Location:  location,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification scheduler", err)
		os.Exit(1)
	}

	monitor, err := regions.NewMonitor(regions.MonitorParams{
		Port:    locationPort,
		Logger:  logg,
		Metrics: engineMetrics,
		Limit:   cfg.Geofence.MonitorLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create region monitor", err)
		os.Exit(1)
	}

	orchestratorSvc, err := orchestrator.NewService(orchestrator.ServiceParams{
		Store:          store,
		Scheduler:      schedulerSvc,
		Monitor:        monitor,
		Deliverer:      deliverer,
		Debounce:       orchestrator.NewRedisDebouncer(redisClient),
		Logger:         logg,
		Metrics:        engineMetrics,
		DebounceWindow: cfg.Notify.DebounceWindow,
		Location:       location,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	orchestratorSvc.Bootstrap(ctx)
	go func() {
		if err := orchestratorSvc.Run(ctx); err != nil && err != context.Canceled {
			logg.Error(ctx, "orchestrator stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Store:  store,
			Checks: checks,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
