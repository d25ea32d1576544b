package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/service"
)

// Authorize resolves the principal's authorization context once per request
// and stores it in the request context for Permit and the handlers.
func Authorize(authz *service.AuthzService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := access.PrincipalFrom(r.Context())
			if p == nil {
				WriteProblem(w, http.StatusUnauthorized, TypeAuthorization, "authorization required", nil)
				return
			}
			ac, err := authz.Resolve(r.Context(), p)
			if err != nil {
				slog.ErrorContext(r.Context(), "resolve permissions", "user_id", p.UserID, "error", err)
				WriteProblem(w, http.StatusInternalServerError, TypeAuthorization, "internal server error", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(access.WithAuthorization(r.Context(), ac)))
		})
	}
}

// Permit returns middleware that requires the resolved authorization context
// to allow action on entity. Authorize must run first.
func Permit(entity access.Entity, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := access.AuthorizationFrom(r.Context())
			if ac == nil {
				WriteProblem(w, http.StatusUnauthorized, TypeAuthorization, "authorization required", nil)
				return
			}
			if !ac.Allows(entity, action) {
				slog.InfoContext(r.Context(), "permission denied", "entity", entity, "action", action)
				msg := "you are not allowed to " + strings.ToLower(string(action)) + " " + string(entity)
				WriteProblem(w, http.StatusForbidden, TypeAuthorization, msg, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
