// Package handler wires document and template endpoints to the
// document service. Transport concerns only; business rules live in the
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"labcert/internal/document/models"
	"labcert/internal/document/service"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/httputil"
	"labcert/pkg/requestcontext"
)

// Service defines the document operations the handler depends on.
type Service interface {
	RequestIssuance(ctx context.Context, req service.IssuanceRequest) (*models.Document, error)
	Approve(ctx context.Context, docID id.DocumentID, approver id.UserID) (*models.Document, error)
	Revoke(ctx context.Context, docID id.DocumentID, reason string) (*service.RevokeOutcome, error)
	RenderArtifact(ctx context.Context, docID id.DocumentID) (string, error)
	GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	ListDocuments(ctx context.Context, kind models.Kind) ([]*models.Document, error)

	CreateTemplate(ctx context.Context, kind models.Kind, name, body string) (*models.Template, error)
	ActivateTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	DeactivateTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	ListTemplates(ctx context.Context, kind models.Kind) ([]*models.Template, error)
}

// Handler wires document endpoints to the document service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a document handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/issue", h.HandleIssue)
	r.Get("/documents", h.HandleList)
	r.Get("/documents/{documentID}", h.HandleGet)
	r.Post("/documents/{documentID}/approve", h.HandleApprove)
	r.Post("/documents/{documentID}/revoke", h.HandleRevoke)
	r.Post("/documents/{documentID}/render", h.HandleRender)
}

// RegisterTemplates mounts template administration endpoints.
func (h *Handler) RegisterTemplates(r chi.Router) {
	r.Post("/templates", h.HandleCreateTemplate)
	r.Get("/templates", h.HandleListTemplates)
	r.Post("/templates/{templateID}/activate", h.HandleActivateTemplate)
	r.Post("/templates/{templateID}/deactivate", h.HandleDeactivateTemplate)
}

// HandleIssue handles POST /api/documents/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	doc, err := h.service.RequestIssuance(ctx, service.IssuanceRequest{
		Kind:   req.ParsedKind(),
		Source: req.ParsedSource(),
		Fields: req.Fields,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "issuance failed",
			"request_id", requestID,
			"kind", req.Kind,
			"source_kind", req.Source.Kind,
			"source_id", req.Source.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document issued",
		"request_id", requestID,
		"document_id", doc.ID.String(),
		"number", doc.FormattedNumber,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

// HandleGet handles GET /api/documents/{documentID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleList handles GET /api/documents?kind=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocuments(docs))
}

// HandleApprove handles POST /api/documents/{documentID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	approver := requestcontext.ActorID(ctx)
	doc, err := h.service.Approve(ctx, docID, approver)
	if err != nil {
		h.logger.ErrorContext(ctx, "approval failed",
			"request_id", requestcontext.RequestID(ctx),
			"document_id", docID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleRevoke handles POST /api/documents/{documentID}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.Revoke(ctx, docID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "revocation failed",
			"request_id", requestID,
			"document_id", docID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRevokeOutcome(outcome))
}

// HandleRender handles POST /api/documents/{documentID}/render. Used to
// resume rendering after a failed attempt during issuance.
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}

	ref, err := h.service.RenderArtifact(ctx, docID)
	if err != nil {
		h.logger.ErrorContext(ctx, "render failed",
			"request_id", requestcontext.RequestID(ctx),
			"document_id", docID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RenderResponse{ArtifactRef: ref})
}

// HandleCreateTemplate handles POST /api/templates.
func (h *Handler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTemplateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tmpl, err := h.service.CreateTemplate(ctx, req.ParsedKind(), req.Name, req.Body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTemplate(tmpl))
}

// HandleListTemplates handles GET /api/templates?kind=.
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	templates, err := h.service.ListTemplates(r.Context(), kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplates(templates))
}

// HandleActivateTemplate handles POST /api/templates/{templateID}/activate.
func (h *Handler) HandleActivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.templateAction(w, r, h.service.ActivateTemplate)
}

// HandleDeactivateTemplate handles POST /api/templates/{templateID}/deactivate.
func (h *Handler) HandleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.templateAction(w, r, h.service.DeactivateTemplate)
}

func (h *Handler) templateAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.TemplateID) (*models.Template, error)) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "invalid template id"))
		return
	}

	tmpl, err := action(r.Context(), templateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplate(tmpl))
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "invalid document id"))
		return id.DocumentID{}, false
	}
	return docID, true
}
