package tickets

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler exposes issuance and ticket reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a ticket handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers ticket routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleEnforcer, shared.RoleAdmin))
		r.Post("/tickets", h.issue)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleEnforcer, shared.RoleCashier, shared.RoleAdmin))
		r.Get("/tickets/{id}", h.show)
		r.Get("/tickets/{id}/print", h.print)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleEnforcer))
		r.Get("/enforcer/stats/today", h.today)
	})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	ticket, err := h.service.Issue(r.Context(), req, actor.UserID)
	if err != nil {
		h.logger.Error("issue ticket failed", slog.Any("error", err), slog.Int64("enforcer_id", actor.UserID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, IssueResponse{Message: "Ticket created successfully.", Ticket: ticket})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get ticket failed", slog.Any("error", err), slog.Int64("ticket_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(w, r)
	if !ok {
		return
	}
	view, err := h.service.PrintView(r.Context(), id)
	if err != nil {
		h.logger.Error("print ticket failed", slog.Any("error", err), slog.Int64("ticket_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	stats, err := h.service.EnforcerToday(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("enforcer stats failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func ticketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidationError("id", "is invalid"))
		return 0, false
	}
	return id, true
}
