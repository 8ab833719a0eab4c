package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/internal/cron"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/instance"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/migrate"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	workerID := instance.GetID()
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), workerID, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"workerId":    workerID,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	rates, err := commission.RatesFromConfig(cfg.Commission)
	if err != nil {
		return nil, err
	}

	userRepo := users.NewRepository(conn)
	historyRepo := fulfillment.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	notificationRepo := notifications.NewRepository(conn)
	dispatcher := notifications.NewDispatcher(notificationRepo, userRepo, logg)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		TxRunner: dbClient,
		Repo:     ledger.NewRepository(conn),
		Outbox:   emitter,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	machine, err := fulfillment.NewMachine(fulfillment.MachineParams{
		TxRunner:   dbClient,
		Repo:       historyRepo,
		Catalog:    catalog.NewRepository(conn),
		Settler:    commission.NewSettler(commission.NewEngine(rates), ledgerService, logg),
		Outbox:     emitter,
		Notifier:   dispatcher,
		Classifier: fulfillment.NewClassifier(cfg.Courier),
		Metrics:    metrics.NewFulfillmentMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	courierClient, err := courier.NewClient(cfg.Courier,
		courier.WithLogger(logg),
		courier.WithMetrics(metrics.NewCourierMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return nil, err
	}

	tracking, err := cron.NewCourierTrackingJob(cron.CourierTrackingJobParams{
		Logger:    logg,
		SubOrders: historyRepo,
		Gateway:   courierClient,
		Machine:   machine,
		BatchSize: cfg.Cron.TrackingBatchSize,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notificationRepo,
		Retention:  cfg.Cron.NotificationRetention,
		BatchSize:  cfg.Cron.PurgeBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
		BatchSize:  cfg.Cron.PurgeBatchSize,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(tracking, cleanup, retention)
}
