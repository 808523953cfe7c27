package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/skylark-travel/flightpay/internal/api/handler"
	"github.com/skylark-travel/flightpay/internal/api/middleware"
	"github.com/skylark-travel/flightpay/internal/api/spec"
	"github.com/skylark-travel/flightpay/internal/config"
	"github.com/skylark-travel/flightpay/internal/idempotency"
	"github.com/skylark-travel/flightpay/internal/repository"
	"github.com/skylark-travel/flightpay/internal/service"
	"github.com/skylark-travel/flightpay/internal/worker"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Router wires middleware, handlers and infrastructure into the HTTP surface.
type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *pgxpool.Pool
	store       *repository.Store
	idemStore   *idempotency.Store
	redis       redis.Cmdable
	ledgerSvc   *service.LedgerService
	voucherSvc  *service.VoucherService
	creditSvc   *service.CreditService
	webhookSvc  *service.WebhookService
	reconWorker *worker.ReconciliationWorker
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	store *repository.Store,
	idemStore *idempotency.Store,
	redisClient redis.Cmdable,
	ledgerSvc *service.LedgerService,
	voucherSvc *service.VoucherService,
	creditSvc *service.CreditService,
	webhookSvc *service.WebhookService,
	reconWorker *worker.ReconciliationWorker,
) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		store:       store,
		idemStore:   idemStore,
		redis:       redisClient,
		ledgerSvc:   ledgerSvc,
		voucherSvc:  voucherSvc,
		creditSvc:   creditSvc,
		webhookSvc:  webhookSvc,
		reconWorker: reconWorker,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	webhookHandler := handler.NewWebhookHandler(api.webhookSvc)
	bookingHandler := handler.NewBookingHandler(api.ledgerSvc, api.store)
	voucherHandler := handler.NewVoucherHandler(api.voucherSvc)
	creditHandler := handler.NewCreditHandler(api.creditSvc)
	reconHandler := handler.NewReconciliationHandler(api.reconWorker)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

		// The gateway authenticates with an HMAC signature, not a JWT.
		r.Post("/v1/webhooks/payment", webhookHandler.HandlePaymentWebhook)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/bookings/{id}", bookingHandler.GetBooking)
		r.Get("/v1/bookings/{id}/ledger", bookingHandler.GetBookingLedger)
		r.Get("/v1/bookings/{id}/history", bookingHandler.GetBookingHistory)

		r.Post("/v1/vouchers/validate", voucherHandler.ValidateVoucher)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/vouchers/apply", voucherHandler.ApplyVoucher)

		r.Get("/v1/credits/balance", creditHandler.GetBalance)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/credits/use", creditHandler.UseCredits)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))

			r.Post("/v1/credits/grant", creditHandler.GrantCredit)
			r.Post("/v1/admin/reconciliation/run", reconHandler.TriggerRun)
		})
	})

	return r
}
