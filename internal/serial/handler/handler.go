// Package handler wires lab-result serial endpoints to the serial
// service.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"labcert/internal/serial"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/httputil"
	"labcert/pkg/requestcontext"
)

// Handler wires serial endpoints to the serial service.
type Handler struct {
	service *serial.Service
	logger  *slog.Logger
}

// New constructs a serial handler.
func New(service *serial.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts serial endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/lab-results/{labResultID}/serial", h.HandleAssign)
	r.Get("/lab-results/{labResultID}/serial", h.HandleGet)
	r.Post("/lab-results/{labResultID}/serial/printed", h.HandleMarkPrinted)
	r.Post("/lab-results/{labResultID}/serial/revoke", h.HandleRevoke)
}

// BindingResponse is the staff-facing projection of a serial binding.
type BindingResponse struct {
	LabResultID    int64      `json:"lab_result_id"`
	Serial         string     `json:"serial"`
	Year           int        `json:"year"`
	Sequence       int64      `json:"sequence"`
	FirstPrintedAt *time.Time `json:"first_printed_at,omitempty"`
	IsRevoked      bool       `json:"is_revoked"`
	CreatedAt      time.Time  `json:"created_at"`
	QRPayload      string     `json:"qr_payload"`
}

func (h *Handler) response(b *serial.Binding) *BindingResponse {
	return &BindingResponse{
		LabResultID:    int64(b.LabResultID),
		Serial:         b.Serial,
		Year:           b.Year,
		Sequence:       b.Sequence,
		FirstPrintedAt: b.FirstPrintedAt,
		IsRevoked:      b.IsRevoked,
		CreatedAt:      b.CreatedAt,
		QRPayload:      h.service.QRPayload(b),
	}
}

// HandleAssign handles POST /api/lab-results/{labResultID}/serial.
// Idempotent: repeats return the existing binding.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	labResultID, ok := h.labResultID(w, r)
	if !ok {
		return
	}

	binding, err := h.service.AssignSerial(ctx, labResultID)
	if err != nil {
		h.logger.ErrorContext(ctx, "serial assignment failed",
			"request_id", requestcontext.RequestID(ctx),
			"lab_result_id", int64(labResultID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(binding))
}

// HandleGet handles GET /api/lab-results/{labResultID}/serial.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	labResultID, ok := h.labResultID(w, r)
	if !ok {
		return
	}

	binding, err := h.service.GetBinding(r.Context(), labResultID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(binding))
}

// HandleMarkPrinted handles POST /api/lab-results/{labResultID}/serial/printed.
func (h *Handler) HandleMarkPrinted(w http.ResponseWriter, r *http.Request) {
	labResultID, ok := h.labResultID(w, r)
	if !ok {
		return
	}

	binding, err := h.service.MarkPrinted(r.Context(), labResultID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(binding))
}

// HandleRevoke handles POST /api/lab-results/{labResultID}/serial/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	labResultID, ok := h.labResultID(w, r)
	if !ok {
		return
	}

	binding, err := h.service.Revoke(ctx, labResultID)
	if err != nil {
		h.logger.ErrorContext(ctx, "serial revocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"lab_result_id", int64(labResultID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(binding))
}

func (h *Handler) labResultID(w http.ResponseWriter, r *http.Request) (id.LabResultID, bool) {
	raw := chi.URLParam(r, "labResultID")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "invalid lab result id"))
		return 0, false
	}
	return id.LabResultID(n), true
}
