package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftroot/storefront-backend/api/controllers"
	"github.com/craftroot/storefront-backend/api/middleware"
	"github.com/craftroot/storefront-backend/internal/catalog"
	"github.com/craftroot/storefront-backend/internal/coupons"
	"github.com/craftroot/storefront-backend/internal/orders"
	"github.com/craftroot/storefront-backend/internal/payments"
	"github.com/craftroot/storefront-backend/internal/refunds"
	"github.com/craftroot/storefront-backend/pkg/config"
	"github.com/craftroot/storefront-backend/pkg/logger"
	"github.com/craftroot/storefront-backend/pkg/metrics"
	"github.com/craftroot/storefront-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Pingables   []controllers.Pingable
	Idempotency redis.IdempotencyStore
	HTTPMetrics *metrics.HTTPMetrics

	Orders   orders.Service
	Payments payments.Service
	Refunds  refunds.Service
	Coupons  coupons.Service
	Catalog  catalog.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingables, logg))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(deps.Orders, logg))
			r.Post("/{orderID}/confirm", controllers.OrderConfirm(deps.Orders, logg))
			r.Post("/{orderID}/receipt", controllers.ReceiptUpload(deps.Payments, logg))
			r.Post("/{orderID}/refund", controllers.RefundRequest(deps.Refunds, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Get("/{productID}", controllers.ProductDetail(deps.Catalog, logg))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/pending-verification", controllers.PendingVerificationList(deps.Payments, logg))
				r.Get("/refund-requests", controllers.RequestedRefundList(deps.Refunds, logg))
				r.Post("/{orderID}/payment-decision", controllers.PaymentDecision(deps.Payments, logg))
				r.Post("/{orderID}/ship", controllers.OrderShip(deps.Orders, logg))
				r.Post("/{orderID}/deliver", controllers.OrderDeliver(deps.Orders, logg))
				r.Post("/{orderID}/refund-processed", controllers.RefundMarkProcessed(deps.Refunds, logg))
				r.With(middleware.RequireAdmin(logg)).Post("/{orderID}/refund-decision", controllers.RefundDecision(deps.Refunds, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Post("/", controllers.CouponCreate(deps.Coupons, logg))
				r.Get("/", controllers.CouponList(deps.Coupons, logg))
				r.Delete("/{code}", controllers.CouponDeactivate(deps.Coupons, logg))
			})

			r.Post("/products", controllers.ProductCreate(deps.Catalog, logg))
		})
	})

	return r
}
