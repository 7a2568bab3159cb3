package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/platform/httputil"
	"rescue/pkg/requestcontext"
)

// Service is the respondant directory as seen by HTTP.
type Service interface {
	Register(ctx context.Context, p models.Profile) (*models.Respondant, error)
	Update(ctx context.Context, id domain.RespondantID, p models.Profile) (*models.Respondant, error)
	Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	Get(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	List(ctx context.Context) ([]*models.Respondant, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts respondant endpoints on r. Authentication is applied by the
// caller's route group.
func (h *Handler) Register(r chi.Router) {
	r.Get("/respondants", h.HandleList)
	r.Post("/respondants", h.HandleCreate)
	r.Get("/respondants/{id}", h.HandleGet)
	r.Put("/respondants/{id}", h.HandleUpdate)
	r.Delete("/respondants/{id}", h.HandleDelete)
}

// HandleList handles GET /respondants.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	all, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list respondants",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if all == nil {
		all = []*models.Respondant{}
	}
	httputil.WriteJSON(w, http.StatusOK, all)
}

// HandleCreate handles POST /respondants.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Register(ctx, req.Profile())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to register respondant",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /respondants/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseRespondantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	found, err := h.service.Get(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load respondant",
			"request_id", requestID,
			"respondant_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

// HandleUpdate handles PUT /respondants/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseRespondantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.Update(ctx, id, req.Profile())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update respondant",
			"request_id", requestID,
			"respondant_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /respondants/{id} and echoes the removed record.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseRespondantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	removed, err := h.service.Delete(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to delete respondant",
			"request_id", requestID,
			"respondant_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, removed)
}
