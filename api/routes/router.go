package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dropship-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/dropship-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/dropship-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/orders"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/dropship-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *pkgredis.Client
	Gatherer prometheus.Gatherer

	Orders        orders.Service
	OrderChecks   ordercontrollers.OrderValidator
	Fulfillment   ordercontrollers.FulfillmentService
	Pickups       controllers.PickupService
	Ledger        ledger.Service
	Notifications notifications.Service

	CourierWebhook      webhookcontrollers.CourierWebhookService
	CourierWebhookGuard webhookcontrollers.CourierWebhookGuard
}

func passthrough(next http.Handler) http.Handler { return next }

func NewRouter(d Dependencies) http.Handler {
	cfg, logg := d.Config, d.Logger
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	idempotent, critical := passthrough, passthrough
	if d.Redis != nil {
		idempotent = middleware.Idempotency(d.Redis, cfg.Idempotency.DefaultTTL, logg)
		critical = middleware.Idempotency(d.Redis, cfg.Idempotency.CriticalTTL, logg)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	deps := map[string]controllers.Pinger{"db": d.DB}
	if d.Redis != nil {
		deps["redis"] = d.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/courier", webhookcontrollers.CourierWebhook(d.CourierWebhook, d.CourierWebhookGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(d.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
			})
			r.Route("/ledger", func(r chi.Router) {
				r.Get("/balance", controllers.LedgerBalance(d.Ledger, logg))
				r.Get("/transactions", controllers.LedgerTransactions(d.Ledger, logg))
			})
			r.Route("/withdraws", func(r chi.Router) {
				r.Get("/", controllers.ListWithdraws(d.Ledger, logg))
				r.With(idempotent).Post("/", controllers.CreateWithdraw(d.Ledger, logg))
			})
			r.Get("/orders/{orderId}", ordercontrollers.GetOrder(d.Orders, logg))
			r.Get("/sub-orders/{subOrderId}/history", ordercontrollers.SubOrderHistory(d.Fulfillment, logg))
			r.Get("/pickups/{pickupId}", controllers.GetPickup(d.Pickups, logg))

			r.Route("/seller", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleSeller))
				r.With(critical).Post("/orders", ordercontrollers.SubmitOrder(d.Orders, d.OrderChecks, logg))
				r.Get("/orders", ordercontrollers.ListSellerOrders(d.Orders, logg))
				r.Get("/orders/{orderId}", ordercontrollers.GetOrder(d.Orders, logg))
				r.With(critical).Post("/orders/{orderId}/cancel", ordercontrollers.CancelOrder(d.Fulfillment, logg))
				r.With(critical).Post("/sub-orders/{subOrderId}/cancel", ordercontrollers.CancelSubOrder(d.Fulfillment, logg))
			})

			r.Route("/supplier", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleSupplier))
				r.Get("/sub-orders", ordercontrollers.ListSupplierSubOrders(d.Orders, logg))
				r.With(critical).Post("/pickups", controllers.RequestPickup(d.Pickups, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.With(critical).Post("/pickups", controllers.RequestPickup(d.Pickups, logg))
				r.With(critical).Post("/orders/{orderId}/cancel", ordercontrollers.CancelOrder(d.Fulfillment, logg))
				r.With(critical).Post("/sub-orders/{subOrderId}/cancel", ordercontrollers.CancelSubOrder(d.Fulfillment, logg))
				r.Post("/sub-orders/{subOrderId}/status", ordercontrollers.AdminApplyStatus(d.Fulfillment, logg))
				r.Get("/withdraws", controllers.AdminListWithdraws(d.Ledger, logg))
				r.With(idempotent).Post("/withdraws/{withdrawId}/approve", controllers.AdminApproveWithdraw(d.Ledger, logg))
				r.With(idempotent).Post("/withdraws/{withdrawId}/decline", controllers.AdminDeclineWithdraw(d.Ledger, logg))
				r.With(critical).Post("/transactions", controllers.AdminCreateTransaction(d.Ledger, logg))
			})
		})
	})

	return r
}
