package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all space routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Post("/spaces/main", h.HandleCreateMainSpace)
		r.Post("/spaces", h.HandleCreateSpace)
		r.Get("/spaces", h.HandleListSpaces)
		r.Get("/invariant", h.HandleVerifyInvariant)
		r.Get("/ranking", h.HandleRankSpaces)
	})

	r.Route("/spaces/{spaceID}", func(r chi.Router) {
		r.Get("/", h.HandleGetSpace)
		r.Patch("/", h.HandleReconfigure)

		// Balance
		r.Post("/delta", h.HandleApplyDelta)
		r.Put("/balance", h.HandleSetBalance)
		r.Get("/entries", h.HandleGetEntries)

		// Freeze state
		r.Post("/freeze", h.HandleFreeze)
		r.Post("/unfreeze", h.HandleUnfreeze)

		r.Get("/report", h.HandleGetReport)
	})

	r.Post("/transfers", h.HandleTransfer)
}
