package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
)

const (
	ActionLogin              = "auth.login"
	ActionLoginFailed        = "auth.login_failed"
	ActionSignup             = "auth.signup"
	ActionLogout             = "auth.logout"
	ActionForgotPassword     = "auth.forgot_password"
	ActionResetConfirmed     = "auth.reset_confirmed"
	ActionPasswordReset      = "auth.password_reset"
	ActionAdminPasswordReset = "auth.admin_password_reset"
	ActionPasswordChanged    = "auth.password_changed"
	ActionUserCreated        = "user.created"
)

type LogEntry struct {
	// TenantID and UserID default to the principal in the context.
	TenantID     *uuid.UUID
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

// Logger is what the account workflow records events through.
type Logger interface {
	Log(ctx context.Context, entry LogEntry) error
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	entry = fill(ctx, entry)
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var ip *netip.Addr
	if entry.IPAddress != "" {
		parsed, err := netip.ParseAddr(entry.IPAddress)
		if err == nil {
			ip = &parsed
		}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.TenantID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// SlogLogger writes audit events to the application log. It stands in
// for Service when there is no database.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Log(ctx context.Context, entry LogEntry) error {
	entry = fill(ctx, entry)
	attrs := []any{"action", entry.Action}
	if entry.TenantID != nil {
		attrs = append(attrs, "tenant_id", entry.TenantID.String())
	}
	if entry.UserID != nil {
		attrs = append(attrs, "user_id", entry.UserID.String())
	}
	if entry.IPAddress != "" {
		attrs = append(attrs, "ip", entry.IPAddress)
	}
	if len(entry.Details) > 0 {
		attrs = append(attrs, "details", entry.Details)
	}
	l.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

func fill(ctx context.Context, entry LogEntry) LogEntry {
	if p, ok := tenant.PrincipalFromContext(ctx); ok {
		if entry.TenantID == nil {
			tid := p.TenantID
			entry.TenantID = &tid
		}
		if entry.UserID == nil {
			uid := p.ID
			entry.UserID = &uid
		}
	}
	if entry.IPAddress == "" {
		entry.IPAddress = ClientIP(ctx)
	}
	return entry
}

type ctxKey struct{}

// WithClientIP stores the request's client address for later entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ctxKey{}).(string)
	return ip
}
