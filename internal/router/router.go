package router

import (
	"net/http"

	"sodaclub-ledger-api/internal/handler"
	"sodaclub-ledger-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AuthHandler    *handler.AuthHandler
	LedgerHandler  *handler.LedgerHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/register", cfg.AuthHandler.Register)
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
				r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
			}

			if cfg.LedgerHandler != nil {
				r.Route("/me", func(r chi.Router) {
					r.Get("/summary", cfg.LedgerHandler.Summary)
					r.Get("/transactions", cfg.LedgerHandler.Transactions)
					r.Post("/purchases", cfg.LedgerHandler.RecordPurchase)
					r.Post("/payments", cfg.LedgerHandler.ReportPayment)
				})
			}

			// ADMIN routes
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireAdmin)

					r.Get("/payments/pending", cfg.AdminHandler.PendingPayments)
					r.Post("/payments/{id}/approve", cfg.AdminHandler.ApprovePayment)
					r.Post("/adjustments", cfg.AdminHandler.RecordAdjustment)
					r.Get("/price", cfg.AdminHandler.GetPrice)
					r.Put("/price", cfg.AdminHandler.SetPrice)
					r.Get("/stock", cfg.AdminHandler.GetStock)
					r.Post("/stock", cfg.AdminHandler.AddStock)
					r.Get("/members", cfg.AdminHandler.Members)
					r.Post("/members", cfg.AdminHandler.AddMember)
					r.Post("/members/{identifier}/activate", cfg.AdminHandler.ActivateMember)
					r.Post("/members/{identifier}/deactivate", cfg.AdminHandler.DeactivateMember)
				})
			}
		})
	})

	return r
}
