package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pumpmusic/backend/api/controllers"
	"github.com/pumpmusic/backend/api/middleware"
	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/internal/generation"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/config"
	"github.com/pumpmusic/backend/pkg/logger"
)

// RouterParams carry the wired services into the HTTP layer.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Accounts    middleware.AccountProvisioner
	Guard       ledger.Guard
	Purchases   ledger.PurchaseService
	Catalog     catalog.Service
	Generation  generation.Service
	ReadyChecks map[string]controllers.Pinger
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.ReadyChecks))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/library", controllers.PublicLibrary(params.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, params.Accounts, logg))

		r.Route("/music", func(r chi.Router) {
			r.Post("/generate", controllers.GenerateMusic(params.Generation, params.Guard, logg))
			r.Get("/generations/{jobId}", controllers.GenerationStatus(params.Generation, logg))
			r.Get("/history", controllers.MusicHistory(params.Catalog, logg))
			r.Get("/{trackId}", controllers.GetTrack(params.Catalog, logg))
			r.Post("/{trackId}/play", controllers.PlayTrack(params.Catalog, logg))
			r.Post("/{trackId}/like", controllers.LikeTrack(params.Catalog, logg))
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/balance", controllers.TokenBalance(params.Guard, logg))
			r.Get("/packs", controllers.TokenPacks())
			r.Post("/purchase", controllers.PurchaseTokens(params.Purchases, logg))
			r.Get("/history", controllers.TokenHistory(params.Guard, logg))
		})
	})

	return r
}
