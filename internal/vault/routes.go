package vault

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the vault API. requirePrincipal gates the mutating
// entry points; the withdrawal role check itself lives in the service.
func (h *Handler) MountRoutes(r chi.Router, requirePrincipal func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requirePrincipal)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
	})
	r.Get("/balance", h.Balance)
	r.Get("/statement", h.Statement)
}
