package api

import (
	"net/http"

	"github.com/fastprodman/tombola/internal/infra/logging"
	"github.com/fastprodman/tombola/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the router exposes.
type Deps struct {
	Game      Game
	Ledger    Ledger
	Purchases Purchases
	Claims    Claims
	Pricing   Pricing
	RateLimit RateLimitConfig
	// WatchPurchases starts a background poll for every new purchase.
	WatchPurchases bool
}

// NewRouter builds the chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	h := &HandlerProvider{
		game:           d.Game,
		ledger:         d.Ledger,
		purchases:      d.Purchases,
		claims:         d.Claims,
		pricing:        d.Pricing,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		watchPurchases: d.WatchPurchases,
	}
	limiter := newUserLimiter(d.RateLimit)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/catalog", h.CatalogHandler)

	r.Route("/users/{userKey}", func(r chi.Router) {
		r.With(limiter.limitPerUser).Post("/spin", h.SpinHandler)
		r.Get("/balance", h.GetBalanceHandler)
		r.Post("/first-visit", h.FirstVisitHandler)
		r.Post("/purchases", h.CreatePurchaseHandler)
		r.Get("/claims", h.ListClaimsHandler)
	})

	r.Get("/purchases/{transactionId}", h.PurchaseStatusHandler)
	r.Get("/claims/{claimId}", h.GetClaimHandler)

	return r
}
