package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ventiahq/ventia-backend/api/controllers"
	ordercontrollers "github.com/ventiahq/ventia-backend/api/controllers/orders"
	"github.com/ventiahq/ventia-backend/api/middleware"
	"github.com/ventiahq/ventia-backend/internal/notifications"
	"github.com/ventiahq/ventia-backend/internal/orders"
	"github.com/ventiahq/ventia-backend/internal/stock"
	"github.com/ventiahq/ventia-backend/pkg/config"
	"github.com/ventiahq/ventia-backend/pkg/db"
	"github.com/ventiahq/ventia-backend/pkg/logger"
	"github.com/ventiahq/ventia-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	ordersSvc orders.Service,
	stockSvc stock.Service,
	notificationsSvc notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.WorkspaceContext(logg))
		var store redis.IdempotencyStore
		if redisClient != nil {
			store = redisClient
		}
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(ordersSvc, logg))
			r.Post("/{orderId}/status", ordercontrollers.UpdateStatus(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Put("/{productId}", controllers.SetInventory(stockSvc, notificationsSvc, logg))
			r.Get("/{productId}", controllers.GetInventory(stockSvc, logg))
			r.Get("/{productId}/movements", controllers.ListInventoryMovements(stockSvc, logg))
		})

		r.Get("/notifications", controllers.ListNotifications(notificationsSvc, logg))
	})

	return r
}
