package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cashstore-backend/api/controllers"
	"github.com/angelmondragon/cashstore-backend/api/middleware"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
)

// NewOpsRouter serves the worker's operational endpoints: liveness,
// readiness over deps, and the Prometheus scrape endpoint for gatherer.
// httpMetrics may be nil.
func NewOpsRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deps map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.Recoverer(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
