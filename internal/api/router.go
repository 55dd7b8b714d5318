package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/nikhilbhutani/crmcore/internal/account"
	"github.com/nikhilbhutani/crmcore/internal/api/handlers"
	"github.com/nikhilbhutani/crmcore/internal/api/middleware"
	"github.com/nikhilbhutani/crmcore/internal/auth"
	"github.com/nikhilbhutani/crmcore/internal/config"
	"github.com/nikhilbhutani/crmcore/internal/metrics"
	"github.com/nikhilbhutani/crmcore/internal/models"
)

// Deps are the collaborators the HTTP surface is built from. Metrics,
// the readiness checks and the rate limit store are optional; without
// a store the /auth limit is kept in process memory.
type Deps struct {
	Accounts  *account.Service
	Resolver  *auth.Resolver
	Metrics   *metrics.Metrics
	Checks    map[string]handlers.Pinger
	RateStore limiter.Store
	Logger    *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RateStore == nil {
		deps.RateStore = memory.NewStore()
	}
	return &Router{mux: chi.NewRouter(), cfg: cfg, deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RealIP(rt.cfg.Server.TrustedProxies))
	r.Use(middleware.Logging(rt.deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if rt.deps.Metrics != nil {
		r.Use(rt.deps.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.origins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/health", health.Healthz)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	authn := auth.NewMiddleware(rt.deps.Resolver, rt.deps.Logger)
	adminOnly := auth.RequireRole(models.RoleAdmin)
	authH := handlers.NewAuthHandler(rt.deps.Accounts)
	userH := handlers.NewUserHandler(rt.deps.Accounts)
	limiter := middleware.NewRateLimiter(rt.deps.RateStore, "auth", rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Limit)

			r.Post("/login", authH.Login)
			r.Post("/signup", authH.Signup)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.Post("/reset-password/confirm", authH.ConfirmReset)

			r.Group(func(r chi.Router) {
				r.Use(authn.Authenticate)
				r.Post("/logout", authH.Logout)
				r.Get("/me", authH.Me)
				r.Post("/reset-password", authH.ResetPassword)
				r.With(adminOnly).Post("/admin-reset-password", authH.AdminResetPassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.With(adminOnly).Post("/", userH.Create)
			r.With(adminOnly).Post("/{id}/reset-password", userH.ResetPassword)
			r.Post("/{id}/change-password", userH.ChangePassword)
		})
	})

	return r
}

func (rt *Router) origins() []string {
	origins := []string{}
	if rt.cfg.Server.FrontendURL != "" {
		origins = append(origins, rt.cfg.Server.FrontendURL)
	}
	return append(origins, rt.cfg.Server.AllowedOrigins...)
}
