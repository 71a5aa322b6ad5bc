// Package rbac resolves bearer tokens into actors and enforces role checks.
package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/shared"
)

// TokenResolver loads the actor behind an opaque bearer token.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*shared.Actor, error)
}

// Middleware wires authentication and role authorization for HTTP handlers.
type Middleware struct {
	Tokens TokenResolver
	Logger *slog.Logger
}

// Authenticate requires a valid bearer token and stores the actor in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.ActorFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Tokens.Resolve(r.Context(), shared.BearerToken(r))
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthorized) && m.Logger != nil {
				m.Logger.Error("rbac resolve token", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireRole authenticates the request and ensures the actor holds one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if len(roles) > 0 && !actor.HasRole(roles...) {
				if m.Logger != nil {
					m.Logger.Warn("rbac role denied",
						slog.Int64("user_id", actor.UserID),
						slog.String("role", actor.Role),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
