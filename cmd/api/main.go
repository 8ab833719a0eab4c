package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/api/routes"
	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/orders"
	"github.com/angelmondragon/dropship-backend/internal/pickups"
	"github.com/angelmondragon/dropship-backend/internal/users"
	courierwebhook "github.com/angelmondragon/dropship-backend/internal/webhooks/courier"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/migrate"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	rates, err := commission.RatesFromConfig(cfg.Commission)
	if err != nil {
		return routes.Dependencies{}, err
	}
	minWithdraw, err := decimal.NewFromString(cfg.Ledger.MinWithdraw)
	if err != nil {
		return routes.Dependencies{}, err
	}

	userRepo := users.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	historyRepo := fulfillment.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	notificationRepo := notifications.NewRepository(conn)
	dispatcher := notifications.NewDispatcher(notificationRepo, userRepo, logg)
	engine := commission.NewEngine(rates)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		TxRunner:    dbClient,
		Repo:        ledger.NewRepository(conn),
		Outbox:      emitter,
		Notifier:    dispatcher,
		Logger:      logg,
		MinWithdraw: minWithdraw,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	machine, err := fulfillment.NewMachine(fulfillment.MachineParams{
		TxRunner:   dbClient,
		Repo:       historyRepo,
		Catalog:    catalogRepo,
		Settler:    commission.NewSettler(engine, ledgerService, logg),
		Outbox:     emitter,
		Notifier:   dispatcher,
		Classifier: fulfillment.NewClassifier(cfg.Courier),
		Metrics:    metrics.NewFulfillmentMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		TxRunner: dbClient,
		Repo:     orders.NewRepository(conn),
		Catalog:  catalogRepo,
		Users:    userRepo,
		History:  historyRepo,
		Engine:   engine,
		Outbox:   emitter,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	courierClient, err := courier.NewClient(cfg.Courier,
		courier.WithLogger(logg),
		courier.WithMetrics(metrics.NewCourierMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return routes.Dependencies{}, err
	}
	pickupService, err := pickups.NewService(pickups.ServiceParams{
		TxRunner: dbClient,
		Repo:     pickups.NewRepository(conn),
		Users:    userRepo,
		Gateway:  courierClient,
		Machine:  machine,
		Outbox:   emitter,
		Notifier: dispatcher,
		Config:   cfg.Courier,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Gatherer:      prometheus.DefaultGatherer,
		Orders:        orderService,
		OrderChecks:   orders.NewValidator(catalogRepo),
		Fulfillment:   machine,
		Pickups:       pickupService,
		Ledger:        ledgerService,
		Notifications: notificationService,
	}

	webhookService, err := courierwebhook.NewService(machine, cfg.Courier.WebhookSecret, logg)
	if err != nil {
		logg.Warn(context.Background(), "courier webhook disabled: "+err.Error())
		return deps, nil
	}
	guard, err := courierwebhook.NewIdempotencyGuard(redisClient, cfg.Courier.ReplayTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}
	deps.CourierWebhook = webhookService
	deps.CourierWebhookGuard = guard
	return deps, nil
}
