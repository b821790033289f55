package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dontforget-backend/api/controllers"
	"github.com/angelmondragon/dontforget-backend/api/middleware"
	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/pkg/config"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger
	Store  *items.Store
	Checks map[string]controllers.Pinger
	Now    func() time.Time
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger
	store := params.Store
	now := params.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Checks))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(store, logg, now))
			r.Post("/", controllers.CreateItem(store, logg, now))
			r.Get("/nearby", controllers.NearbyItems(store, logg, now))
			r.Get("/summary", controllers.ItemsSummary(store, logg))
			r.Route("/{itemId}", func(r chi.Router) {
				r.Get("/", controllers.GetItem(store, logg, now))
				r.Put("/", controllers.UpdateItem(store, logg, now))
				r.Delete("/", controllers.DeleteItem(store, logg))
				r.Post("/used", controllers.MarkItemUsed(store, logg, now))
				r.Post("/balance", controllers.UpdateItemBalance(store, logg, now))
			})
		})
	})

	return r
}
