package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/khatabook-backend/api/controllers"
	khatabookcontrollers "github.com/angelmondragon/khatabook-backend/api/controllers/khatabook"
	ordercontrollers "github.com/angelmondragon/khatabook-backend/api/controllers/orders"
	settlementcontrollers "github.com/angelmondragon/khatabook-backend/api/controllers/settlement"
	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/notifications"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/settlement"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/redis"
)

// redisStore is satisfied by *redis.Client; nil disables replay protection
// and write throttling.
type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	metricsHandler http.Handler,
	ledgerService ledger.Service,
	ordersService orders.Service,
	settlementService settlement.Service,
	couriersService couriers.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App),
	)

	var redisPinger redis.Pinger
	var store redis.IdempotencyStore
	var limiter redis.RateLimiter
	if redisClient != nil {
		redisPinger = redisClient
		store = redisClient
		limiter = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing(cfg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.WriteRateLimit(cfg.RateLimit, limiter, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Get("/me", controllers.Session(logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.UserRoleShopOwner)).Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(ordersService, logg))
				r.Get("/timeline", ordercontrollers.Timeline(ordersService, logg))
				r.Get("/payment-changes", settlementcontrollers.ListChangeRequests(settlementService, logg))
				r.Get("/payment-audit", settlementcontrollers.AuditTrail(settlementService, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.UserRoleRetailer))
					r.Post("/accept", ordercontrollers.Accept(ordersService, logg))
					r.Post("/reject", ordercontrollers.Reject(ordersService, logg))
					r.Post("/status", ordercontrollers.AdvanceStatus(ordersService, logg))
					r.Post("/assign", ordercontrollers.AssignCourier(ordersService, logg))
					r.Post("/payment", settlementcontrollers.ConfirmPayment(settlementService, logg))
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.UserRoleShopOwner))
					r.Post("/cancel", ordercontrollers.Cancel(ordersService, logg))
					r.Post("/payment/adjust", settlementcontrollers.AdjustAmount(settlementService, logg))
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.UserRoleDeliveryBoy))
					r.Post("/payment/complete", settlementcontrollers.CompleteWithPayment(settlementService, logg))
					r.Post("/payment-changes", settlementcontrollers.RequestChange(settlementService, logg))
				})
			})
		})

		r.Route("/payment-changes/{requestId}", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleShopOwner))
			r.Post("/approve", settlementcontrollers.ApproveChange(settlementService, logg))
			r.Post("/reject", settlementcontrollers.RejectChange(settlementService, logg))
		})

		r.Route("/khatabook", func(r chi.Router) {
			r.Get("/summary", khatabookcontrollers.Summary(ledgerService, logg))
			r.Get("/entries", khatabookcontrollers.Entries(ledgerService, logg))
			r.Get("/balance/{counterpartyId}", khatabookcontrollers.Balance(ledgerService, logg))
		})

		r.Route("/couriers", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleRetailer))
			r.Get("/", controllers.ListCouriers(couriersService, logg))
			r.Post("/", controllers.LinkCourier(couriersService, logg))
			r.Delete("/{courierId}", controllers.UnlinkCourier(couriersService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Get("/unread-count", controllers.NotificationUnreadCount(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
