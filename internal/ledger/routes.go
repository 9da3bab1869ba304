package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/accounts", h.handleCreateAccount)
		r.Get("/accounts", h.handleListAccounts)
		r.Post("/accounts/{id}/deactivate", h.handleDeactivateAccount)
		r.Post("/journal-entries", h.handlePostEntry)
		r.Get("/journal-entries", h.handleListEntries)
		r.Post("/journal-entries/{id}/reverse", h.handleReverseEntry)
		r.Get("/trial-balance", h.handleTrialBalance)
	})
}
