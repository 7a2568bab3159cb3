package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rescue/internal/intervention/models"
	"rescue/internal/intervention/service"
	rmodels "rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/platform/httputil"
	"rescue/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, d models.Draft) (*models.Intervention, error)
	Get(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	Remove(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	All(ctx context.Context) iter.Seq2[*models.Intervention, error]
	ListByRespondant(ctx context.Context, id domain.RespondantID) iter.Seq2[*models.Intervention, error]
	ListByUser(ctx context.Context, id domain.UserID) iter.Seq2[*models.Intervention, error]
	ResolveRespondant(ctx context.Context, id domain.InterventionID) (*rmodels.Respondant, error)
	BulkClear(ctx context.Context) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the ledger endpoints. Authentication is applied by the
// caller's route group.
func (h *Handler) Register(r chi.Router) {
	r.Get("/interventions", h.HandleList)
	r.Post("/interventions", h.HandleCreate)
	r.Get("/interventions/{id}", h.HandleGet)
	r.Get("/interventions/{id}/respondant", h.HandleRespondant)
	r.Delete("/interventions/{id}", h.HandleDelete)
}

// RegisterAdmin mounts the bulk clear on an admin-token group.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Delete("/admin/interventions", h.HandleClear)
}

// HandleList handles GET /interventions. At most one of the respondant and
// user query parameters is honored, respondant first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var seq iter.Seq2[*models.Intervention, error]
	q := r.URL.Query()
	switch {
	case q.Get("respondant") != "":
		id, err := domain.ParseRespondantID(q.Get("respondant"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		seq = h.service.ListByRespondant(ctx, id)
	case q.Get("user") != "":
		id, err := domain.ParseUserID(q.Get("user"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		seq = h.service.ListByUser(ctx, id)
	default:
		seq = h.service.All(ctx)
	}

	out, err := service.Collect(seq)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list interventions",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /interventions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req.Draft(requestcontext.UserID(ctx)))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create intervention",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /interventions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseInterventionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	found, err := h.service.Get(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load intervention",
			"request_id", requestID,
			"intervention_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

type respondantResponse struct {
	Respondant *rmodels.Respondant `json:"respondant"`
}

// HandleRespondant handles GET /interventions/{id}/respondant. Unassigned
// interventions and deleted respondants both yield {"respondant": null}.
func (h *Handler) HandleRespondant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseInterventionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp, err := h.service.ResolveRespondant(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to resolve respondant",
			"request_id", requestID,
			"intervention_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, respondantResponse{Respondant: resp})
}

// HandleDelete handles DELETE /interventions/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseInterventionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	removed, err := h.service.Remove(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to remove intervention",
			"request_id", requestID,
			"intervention_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, removed)
}

// HandleClear handles DELETE /admin/interventions.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	n, err := h.service.BulkClear(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to clear interventions",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": n})
}
