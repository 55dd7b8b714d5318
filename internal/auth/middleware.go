package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
)

type Middleware struct {
	resolver *Resolver
	logger   *slog.Logger
}

func NewMiddleware(resolver *Resolver, logger *slog.Logger) *Middleware {
	return &Middleware{resolver: resolver, logger: logger}
}

// Authenticate requires a valid bearer token and stores the resolved
// principal in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		p, err := m.resolver.Resolve(r.Context(), tokenStr)
		if err != nil {
			status := apperr.Status(err)
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				m.logger.Debug("token rejected", "reason", apperr.Reason(err), "error", err)
			} else {
				m.logger.Error("resolve principal failed", "error", err)
			}
			writeError(w, status, apperr.Message(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithPrincipal(r.Context(), p)))
	})
}

// RequireRole rejects principals whose role is not one of roles.
// It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := tenant.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing principal")
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
