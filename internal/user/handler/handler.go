package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rescue/internal/user/models"
	"rescue/internal/user/service"
	"rescue/pkg/domain"
	"rescue/pkg/platform/httputil"
	"rescue/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, reg models.Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (*service.Token, error)
	Get(ctx context.Context, id domain.UserID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id domain.UserID, p models.Profile) (*models.User, error)
	Delete(ctx context.Context, id domain.UserID) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts signup and login, which need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/users", h.HandleRegister)
	r.Post("/auth/token", h.HandleToken)
}

// Register mounts the authenticated user routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users", h.HandleList)
	r.Get("/users/{id}", h.HandleGet)
	r.Put("/users/{id}", h.HandleUpdate)
	r.Delete("/users/{id}", h.HandleDelete)
}

// HandleRegister handles POST /users.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.Register(ctx, req.Registration())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register user",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

// HandleToken handles POST /auth/token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	tok, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "token request rejected",
			"request_id", requestID,
			"client_ip", requestcontext.ClientIP(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tok)
}

// HandleList handles GET /users.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if all == nil {
		all = []*models.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /users/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// HandleUpdate handles PUT /users/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.Update(ctx, id, req.Profile())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update user",
			"request_id", requestID,
			"user_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// HandleDelete handles DELETE /users/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.Delete(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to delete user",
			"request_id", requestID,
			"user_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}
