package violations

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a catalog handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the public catalog reads.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/violation-types", h.types)
	r.Get("/violations", h.list)
}

// MountAdminRoutes registers catalog edits; the caller mounts it under /admin/violations.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}", h.update)
	})
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.fail(w, "list violation types failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), ListRequest{Type: q.Get("type"), Query: q.Get("q")})
	if err != nil {
		h.fail(w, "list violations failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.fail(w, "create violation failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("id", "is invalid"))
		return
	}
	var req UpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Update(r.Context(), id, req, actorID(r))
	if err != nil {
		h.fail(w, "update violation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		return actor.UserID
	}
	return 0
}
