package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.Get("/me", h.handleMe)
		r.Post("/logout", h.handleLogout)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Login(r.Context(), req)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("login failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("load current user failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":  profileOf(user),
		"roles": []string{user.Role},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), shared.ActorFromContext(r.Context())); err != nil {
		h.logger.Error("logout failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func isClientError(err error) bool {
	return errors.Is(err, shared.ErrInvalidCredentials) ||
		errors.Is(err, shared.ErrUnauthorized) ||
		errors.Is(err, shared.ErrValidation)
}
