package server

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/taskmanager-auth/internal/console/handler"
	"github.com/xela07ax/taskmanager-auth/internal/infra/auth"
	"go.uber.org/zap"
)

type APIServer struct {
	router *chi.Mux
	logger *zap.Logger

	gate     *auth.Gate
	authz    auth.RouteAuthorizer
	throttle *auth.LoginThrottle

	authHandler *handler.AuthHandler // /api/v1/auth, /api/v1/users/me

	trustedProxies []netip.Prefix
}

// Option настраивает APIServer
type Option func(*APIServer)

// WithTrustedProxies - адреса прокси, которым разрешено передавать IP клиента в заголовках
func WithTrustedProxies(proxies []netip.Prefix) Option {
	return func(s *APIServer) {
		s.trustedProxies = proxies
	}
}

// NewAPIServer инициализирует HTTP API со всеми зависимостями
func NewAPIServer(
	logger *zap.Logger,
	gate *auth.Gate,
	authz auth.RouteAuthorizer,
	throttle *auth.LoginThrottle,
	authH *handler.AuthHandler,
	opts ...Option,
) *APIServer {
	s := &APIServer{
		router:      chi.NewRouter(),
		logger:      logger.Named("api"),
		gate:        gate,
		authz:       authz,
		throttle:    throttle,
		authHandler: authH,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

func (s *APIServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(trustedRealIP(s.trustedProxies))
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. Request Gate + политика доступа ---
	// Gate только устанавливает личность, решение (401/403) принимает RouteEnforcer.
	// Публичность маршрутов описана правилами политики, а не группами роутера.
	r.Use(auth.NewMiddleware(s.gate, s.logger))
	r.Use(auth.RequireAuthorization(s.authz, s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Вход и регистрация: публичные, но под лимитом попыток
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.throttle.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/authenticate", s.authHandler.Authenticate)
			r.Post("/login", s.authHandler.Authenticate)
		})

		r.Get("/users/me", s.authHandler.Me)
	})
}

// requestLogger пишет одну строку на запрос через zap
func (s *APIServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ServeHTTP позволяет использовать APIServer как стандартный http.Handler
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
