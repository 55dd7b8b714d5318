package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/crmcore/internal/account"
	"github.com/nikhilbhutani/crmcore/internal/api"
	"github.com/nikhilbhutani/crmcore/internal/api/handlers"
	"github.com/nikhilbhutani/crmcore/internal/audit"
	"github.com/nikhilbhutani/crmcore/internal/auth"
	"github.com/nikhilbhutani/crmcore/internal/cache"
	"github.com/nikhilbhutani/crmcore/internal/config"
	"github.com/nikhilbhutani/crmcore/internal/database"
	"github.com/nikhilbhutani/crmcore/internal/metrics"
	"github.com/nikhilbhutani/crmcore/internal/notify"
	"github.com/nikhilbhutani/crmcore/internal/password"
	"github.com/nikhilbhutani/crmcore/internal/queue"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
	"github.com/nikhilbhutani/crmcore/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}
	opts := []account.Option{account.WithLogger(logger)}

	// Database connection (optional: without DATABASE_URL accounts live in memory)
	var store account.Store
	if cfg.Database.URL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store = account.NewMemoryStore()
		opts = append(opts, account.WithAudit(audit.NewSlogLogger(logger)))
	} else {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrate(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		pg := account.NewPostgresStore(db)
		store = pg
		checks["database"] = pg
		opts = append(opts, account.WithAudit(audit.NewService(db)))
	}

	// Redis connection (optional: without it throttles are per process)
	var rdb *redis.Client
	throttle := cache.NewMemoryThrottle()
	if cfg.Redis.Addr != "" {
		rdb = cache.NewClient(cfg.Redis)
		defer rdb.Close()
		c := cache.NewCache(rdb)
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable", "error", err)
		}
		checks["redis"] = c
		if rt, err := cache.NewRedisThrottle(rdb); err != nil {
			slog.Warn("redis throttle unavailable, falling back to memory", "error", err)
		} else {
			throttle = rt
		}
	}
	opts = append(opts, account.WithLimiter(throttle))

	mailer, closeMailer := newMailer(cfg, rdb != nil, logger)
	defer closeMailer()
	opts = append(opts, account.WithMailer(mailer))

	m := metrics.New()
	opts = append(opts, account.WithObserver(m))

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.AccessTokenTTL)
	if err != nil {
		slog.Error("token service", "error", err)
		os.Exit(1)
	}
	catalog := tenant.NewCatalog(tenant.CatalogConfig{
		SeatLimits:       cfg.Tenant.PlanSeatLimits,
		DefaultSeatLimit: cfg.Tenant.DefaultSeatLimit,
		DefaultPlan:      cfg.Tenant.DefaultPlan,
		SubscriptionTerm: cfg.Tenant.SubscriptionTerm,
		DomainSuffix:     cfg.Tenant.DomainSuffix,
	})
	svc := account.NewService(store, password.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.PasswordMinLength), tokens, catalog,
		account.Config{
			FrontendURL:   cfg.Server.FrontendURL,
			ResetTokenTTL: cfg.Auth.ResetTokenTTL,
			ForgotLimit:   cfg.Auth.ForgotLimit,
			ForgotWindow:  cfg.Auth.ForgotLimitWindow,
			RequireActive: cfg.Auth.RequireActive,
		}, opts...)

	// Setup router
	router := api.NewRouter(cfg, api.Deps{
		Accounts:  svc,
		Resolver:  auth.NewResolver(tokens, store, cfg.Auth.RequireActive),
		Metrics:   m,
		Checks:    checks,
		RateStore: throttle.Store(),
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// migrate applies the embedded migrations unless a directory override is set.
func migrate(ctx context.Context, db *pgxpool.Pool, dir string) error {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	return database.RunMigrations(ctx, db, fsys)
}

// newMailer picks the queue when a worker can drain it, then SMTP, and
// falls back to logging.
func newMailer(cfg *config.Config, haveRedis bool, logger *slog.Logger) (notify.Sender, func()) {
	switch {
	case haveRedis && cfg.Auth.AsyncNotifications:
		q := queue.NewClient(cfg.Redis)
		slog.Info("email delivery via queue")
		return q, func() { _ = q.Close() }
	case cfg.SMTP.Enabled():
		slog.Info("email delivery via SMTP", "host", cfg.SMTP.Host)
		return notify.NewSMTPSender(cfg.SMTP), func() {}
	default:
		return notify.NewLogSender(logger), func() {}
	}
}
