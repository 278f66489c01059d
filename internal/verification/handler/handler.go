// Package handler exposes the public verification endpoint. It is the
// only unauthenticated route in the API.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"labcert/internal/verification"
	"labcert/pkg/platform/httputil"
	"labcert/pkg/requestcontext"
)

// Handler wires the public lookup endpoint to the verification service.
type Handler struct {
	service *verification.Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service *verification.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the lookup endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/verify", h.HandleLookup)
}

// HandleLookup handles GET /verify?token=. A token that resolves to
// nothing is a 200 with found=false, not a 404: public probes must not
// distinguish "never existed" from "hidden".
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Lookup(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.logger.ErrorContext(ctx, "verification lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
