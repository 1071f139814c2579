package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/txn-aggregator/internal/api/handlers"
	"github.com/baharkarakas/txn-aggregator/internal/auth"
	"github.com/baharkarakas/txn-aggregator/internal/config"
	"github.com/baharkarakas/txn-aggregator/internal/metrics"
	"github.com/baharkarakas/txn-aggregator/internal/middleware"
	"github.com/baharkarakas/txn-aggregator/internal/ratelimit"
)

type RouterDeps struct {
	Cfg     config.Config
	Handler *handlers.TransactionHandler
	Limiter *ratelimit.Limiter
	// Tokens guards POST /transactions/sync when non-nil.
	Tokens *auth.TokenManager
	// Now feeds the rate limiter; nil means time.Now.
	Now func() time.Time
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	if d.Cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	h := d.Handler
	r.Route("/transactions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(d.Limiter, d.Now))
			r.Get("/", h.List)
			r.Get("/balance", h.Balance)
			r.Get("/payouts", h.PayoutList)
			r.Get("/stats", h.Stats)
		})
		r.Group(func(r chi.Router) {
			if d.Tokens != nil {
				r.Use(middleware.RequireRole(d.Tokens, auth.RoleAdmin))
			}
			r.Post("/sync", h.TriggerSync)
		})
	})

	return r
}
