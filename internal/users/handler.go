package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes; the caller mounts it under /admin/users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/reset-password", h.resetPassword)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r, 20, 200)
	q := r.URL.Query()
	res, err := h.service.List(r.Context(), ListRequest{
		Query:   q.Get("q"),
		Role:    q.Get("role"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.fail(w, "list users failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, "create user failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"message": "User created.", "data": u})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": u})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Update(r.Context(), id, req, shared.ActorFromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, "update user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User updated.", "data": u})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), id, req, shared.ActorFromContext(r.Context()).UserID); err != nil {
		h.fail(w, "reset password failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password reset."})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidationError("id", "is invalid"))
		return 0, false
	}
	return id, true
}
