/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the SPA frontend

ROUTE GROUPS:
  /api/sales/*       Sales contracts
  /api/payments/*    Payments
  /api/stands/*      Stand directory
  /api/customers/*   Customer directory
  /api/agencies/*    Agency directory
  /api/seed          Demo data (dev only)

SECURITY NOTE:
  No authentication middleware; the source system handled auth in its
  hosted backend, out of scope here. Do not expose without a gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Sales routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Get("/outstanding", h.ListOutstandingSales)
			r.Get("/{id}", h.GetSale)
			r.Put("/{id}", h.UpdateSale)
			r.Delete("/{id}", h.DeleteSale)
			r.Get("/{id}/payments", h.ListSalePayments)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Directory routes
		r.Route("/stands", func(r chi.Router) { h.mountDirectory(r, standsResource) })
		r.Route("/customers", func(r chi.Router) { h.mountDirectory(r, customersResource) })
		r.Route("/agencies", func(r chi.Router) { h.mountDirectory(r, agenciesResource) })

		// Demo data (dev only)
		r.Post("/seed", h.SeedDemo)
	})

	return r
}
