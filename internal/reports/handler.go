package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler exposes admin reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a report handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes; the caller mounts it under /admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/reports/overview", h.overview)
		r.Get("/stats", h.stats)
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overview, err := h.service.Overview(r.Context(), ParseRange(q.Get("from"), q.Get("to"), h.service.Location()))
	if err != nil {
		h.logger.Error("report overview failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AdminStats(r.Context())
	if err != nil {
		h.logger.Error("admin stats failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
