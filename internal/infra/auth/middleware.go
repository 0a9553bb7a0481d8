package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"github.com/xela07ax/taskmanager-auth/internal/policy"
	"go.uber.org/zap"
)

// RouteAuthorizer - политика доступа к маршрутам (policy.RouteEnforcer)
type RouteAuthorizer interface {
	Decide(ident *domain.Identity, target string) policy.Decision
}

// NewMiddleware - HTTP-обертка над Gate. Никогда не отвечает сама:
// при успехе кладет личность в контекст, иначе пропускает запрос как есть.
func NewMiddleware(g *Gate, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("auth-middleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, outcome := g.Resolve(r.Context(), r.Header.Get("Authorization"))
			if outcome == OutcomeAuthenticated {
				r = r.WithContext(WithIdentity(r.Context(), ident))
			}

			logger.Debug("gate",
				zap.String("outcome", string(outcome)),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthorization - терминальная проверка доступа после Gate.
// Нет личности на защищенном маршруте -> 401, нет роли -> 403.
func RequireAuthorization(authz RouteAuthorizer, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("authz")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := IdentityFrom(r.Context())

			switch authz.Decide(ident, r.URL.Path) {
			case policy.Allow:
				next.ServeHTTP(w, r)
			case policy.Unauthenticated:
				w.Header().Set("WWW-Authenticate", `Bearer realm="taskmanager"`)
				infra.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			default:
				logger.Info("access denied",
					zap.String("subject", ident.Subject),
					zap.String("path", r.URL.Path),
				)
				infra.WriteError(w, r, http.StatusForbidden, "forbidden", "access denied")
			}
		})
	}
}
