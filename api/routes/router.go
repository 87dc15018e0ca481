package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airink/storefront-backend/api/controllers"
	"github.com/airink/storefront-backend/api/middleware"
	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	carts controllers.CartSessions,
	remoteEnabled bool,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, logg))

		r.Get("/session", controllers.SessionInfo(remoteEnabled))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(carts, logg))
			r.Delete("/", controllers.CartClear(carts, logg))
			r.Post("/items", controllers.CartAddItem(carts, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItemQuantity(carts, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(carts, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(carts, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(carts, logg))
		})
	})

	return r
}
