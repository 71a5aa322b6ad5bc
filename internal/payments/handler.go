package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler exposes cashier and admin payment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a payment handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers cashier routes; the caller mounts it under /clerk/payments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleCashier, shared.RoleAdmin))
		r.Get("/ticket-lookup", h.lookup)
		r.Get("/unpaid", h.unpaid)
		r.Get("/history", h.history)
		r.Post("/", h.record)
		r.Post("/{payment}/void", h.void)
	})
}

// MountAdminRoutes registers the admin journal; the caller mounts it under /admin/payments.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/", h.list)
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.LookupOutstanding(r.Context(), r.URL.Query().Get("control_no"))
	if err != nil {
		h.respondErr(w, "ticket lookup failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) unpaid(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.RecentUnpaid(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.respondErr(w, "recent unpaid failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.RecentPaid(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.respondErr(w, "payment history failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.RecordPayment(r.Context(), req, actor.UserID, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondErr(w, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "payment"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("payment_id", "is invalid"))
		return
	}
	var req VoidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.VoidPayment(r.Context(), paymentID, actor.UserID, req.Reason)
	if err != nil {
		h.respondErr(w, "void payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r, 50, 200)
	q := r.URL.Query()
	req := ListRequest{
		Status: Status(q.Get("status")),
		From:   parseDate(q.Get("from"), h.service.loc),
		To:     parseDate(q.Get("to"), h.service.loc),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if req.To != nil {
		end := req.To.AddDate(0, 0, 1)
		req.To = &end
	}
	result, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondErr(w, "list payments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondErr(w http.ResponseWriter, msg string, err error) {
	if !isClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	return errorsIsAny(err, shared.ErrValidation, shared.ErrNotFound, shared.ErrOverpayment, shared.ErrConflict)
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

func parseDate(raw string, loc *time.Location) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil
	}
	return &t
}
