package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Tenant   TenantConfig
	SMTP     SMTPConfig
	LogLevel string
}

type ServerConfig struct {
	Host        string
	Port        int
	FrontendURL string
	// Origins allowed by CORS in addition to FrontendURL.
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	// Peers whose X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies []netip.Prefix
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret          string
	JWTAlgorithm       string
	AccessTokenTTL     time.Duration
	BcryptCost         int
	PasswordMinLength  int
	ResetTokenTTL      time.Duration
	RequireActive      bool
	ForgotLimit        int
	ForgotLimitWindow  time.Duration
	AsyncNotifications bool
}

type TenantConfig struct {
	DomainSuffix     string
	PlanSeatLimits   map[string]int
	DefaultSeatLimit int
	DefaultPlan      string
	SubscriptionTerm time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	port, err := getEnvInt("APP_PORT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	if port == 0 {
		if port, err = getEnvInt("PORT", 3000); err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ttlMinutes, err := getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 1440)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
	}

	bcryptCost, err := getEnvInt("BCRYPT_COST", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	minLength, err := getEnvInt("PASSWORD_MIN_LENGTH", 8)
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_MIN_LENGTH: %w", err)
	}

	resetTTL, err := getEnvDuration("RESET_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_TOKEN_TTL: %w", err)
	}

	forgotLimit, err := getEnvInt("FORGOT_PASSWORD_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid FORGOT_PASSWORD_LIMIT: %w", err)
	}

	forgotWindow, err := getEnvDuration("FORGOT_PASSWORD_WINDOW", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid FORGOT_PASSWORD_WINDOW: %w", err)
	}

	seatLimits, err := ParsePlanLimits(getEnv("PLAN_SEAT_LIMITS", "basic=5,pro=25,enterprise=999"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAN_SEAT_LIMITS: %w", err)
	}

	defaultSeats, err := getEnvInt("PLAN_DEFAULT_SEATS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid PLAN_DEFAULT_SEATS: %w", err)
	}

	term, err := getEnvDuration("SUBSCRIPTION_TERM", 365*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SUBSCRIPTION_TERM: %w", err)
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	rps, err := getEnvFloat("AUTH_RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("AUTH_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_BURST: %w", err)
	}

	trusted, err := ParsePrefixes(getEnv("TRUSTED_PROXIES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	smtpUser := getEnv("SMTP_USER", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("APP_HOST", "0.0.0.0"),
			Port:           port,
			FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			TrustedProxies: trusted,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
			AccessTokenTTL:     time.Duration(ttlMinutes) * time.Minute,
			BcryptCost:         bcryptCost,
			PasswordMinLength:  minLength,
			ResetTokenTTL:      resetTTL,
			RequireActive:      getEnvBool("AUTH_REQUIRE_ACTIVE", false),
			ForgotLimit:        forgotLimit,
			ForgotLimitWindow:  forgotWindow,
			AsyncNotifications: getEnvBool("NOTIFY_ASYNC", true),
		},
		Tenant: TenantConfig{
			DomainSuffix:     getEnv("TENANT_DOMAIN_SUFFIX", "crm.io"),
			PlanSeatLimits:   seatLimits,
			DefaultSeatLimit: defaultSeats,
			DefaultPlan:      getEnv("PLAN_DEFAULT", "basic"),
			SubscriptionTerm: term,
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     smtpPort,
			User:     smtpUser,
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", smtpUser),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	return nil
}

// ParsePlanLimits parses "plan=seats,plan=seats" into a map.
func ParsePlanLimits(raw string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range splitList(raw) {
		name, value, ok := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("seat limit for %q must be a positive integer", name)
		}
		out[name] = n
	}
	return out, nil
}

// ParsePrefixes parses a comma-separated list of CIDRs or bare addresses.
func ParsePrefixes(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range splitList(raw) {
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
