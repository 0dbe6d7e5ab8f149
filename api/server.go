/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. CORS:        Cross-origin requests for frontends
  5. BearerProof: Lifts the Authorization header into the context so the
                  core's Verifier can check consent per call

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Proof transport and verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/invoice-ledger/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(bearerProof)

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.EditInvoice)
			r.Post("/{id}/send", h.SendInvoice)
			r.Post("/{id}/acknowledge", h.AcknowledgeInvoice)
			r.Post("/{id}/pay", h.PayInvoice)
			r.Post("/{id}/cancel", h.CancelInvoice)
			r.Put("/{id}/metadata", h.UpdateMetadata)
		})

		r.Route("/identities/{id}", func(r chi.Router) {
			r.Get("/invoices", h.AllForIdentity)
			r.Get("/invoices/pending", h.PendingForIdentity)
			r.Get("/created", h.ListCreated)
			r.Get("/received", h.ListReceived)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/initialize", h.Initialize)
			r.Get("/settlement-asset", h.GetSettlementAsset)
			r.Put("/settlement-asset", h.UpdateSettlementAsset)
		})
	})

	return r
}

// bearerProof lifts an Authorization bearer token into the request context.
// Absence is not an error here: read endpoints need no proof, and the
// core's Verifier fails closed on mutations.
func bearerProof(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			r = r.WithContext(auth.WithProof(r.Context(), parts[1]))
		}
		next.ServeHTTP(w, r)
	})
}
