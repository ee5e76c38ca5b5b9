package hrest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AdminJWTSecret string
	AllowedOrigins []string
}

func SetupRoutes(h *ReconciliationRestHandler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// ============================================
		// RECONCILIATION (admin)
		// ============================================
		r.Route("/reconciliation", func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminJWTSecret, logger))

			r.Post("/sweep", h.RunSweep)
			r.Get("/transactions/{id}", h.GetTransactionStatus)
			r.Post("/transactions/{id}", h.ReconcileTransaction)
			r.Post("/transactions/{id}/requeue", h.RequeueTransaction)
		})

		r.With(AdminAuth(cfg.AdminJWTSecret, logger)).Post("/transactions", h.RecordTransaction)

		// ============================================
		// BALANCES & LEDGER
		// ============================================
		r.Get("/balances/merchant", h.GetMerchantBalance)
		r.Get("/balances/fees", h.GetFeeBalances)
		r.Get("/entries", h.ListEntries)
		r.Get("/transactions/{id}/posting", h.GetPosting)
		r.Get("/accounts", h.ListAccounts)
	})

	return r
}
