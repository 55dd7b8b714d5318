// Package account implements the credential lifecycle of CRM users:
// login, tenant signup, password resets and admin-created users.
package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/audit"
	"github.com/nikhilbhutani/crmcore/internal/auth"
	"github.com/nikhilbhutani/crmcore/internal/models"
	"github.com/nikhilbhutani/crmcore/internal/notify"
	"github.com/nikhilbhutani/crmcore/internal/password"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// resetTokenBytes of randomness back every reset link (384 bits).
const resetTokenBytes = 48

const defaultPrimaryColor = "#6366f1"

// Limiter is a fixed-window counter; cache.Cache implements it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Observer receives one call per workflow operation; metrics.Metrics
// implements it.
type Observer interface {
	AuthOperation(operation, outcome string, took time.Duration)
}

type Config struct {
	FrontendURL   string
	ResetTokenTTL time.Duration
	ForgotLimit   int
	ForgotWindow  time.Duration
	RequireActive bool
}

type Service struct {
	store   Store
	hasher  *password.Hasher
	tokens  *auth.TokenService
	catalog *tenant.Catalog
	cfg     Config

	mailer   notify.Sender
	limiter  Limiter
	audit    audit.Logger
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithMailer(m notify.Sender) Option { return func(s *Service) { s.mailer = m } }
func WithLimiter(l Limiter) Option { return func(s *Service) { s.limiter = l } }
func WithAudit(a audit.Logger) Option { return func(s *Service) { s.audit = a } }
func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, hasher *password.Hasher, tokens *auth.TokenService, catalog *tenant.Catalog, cfg Config, opts ...Option) *Service {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	s := &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		catalog: catalog,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.mailer == nil {
		s.mailer = notify.NewLogSender(s.logger)
	}
	if s.audit == nil {
		s.audit = audit.NewSlogLogger(s.logger)
	}
	return s
}

// Session is what a successful login or signup returns to the client.
type Session struct {
	User        *models.User   `json:"user"`
	Tenant      *models.Tenant `json:"tenant"`
	AccessToken string         `json:"accessToken"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

func (s *Service) Login(ctx context.Context, email, pw string) (_ *Session, err error) {
	defer s.observe("login", time.Now(), &err)

	user, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		s.hasher.VerifyNothing(pw)
		s.record(ctx, audit.LogEntry{Action: audit.ActionLoginFailed, Details: map[string]interface{}{"reason": "unknown_email"}})
		return nil, apperr.New(apperr.ErrInvalidCredentials, "invalid_credentials")
	}
	if err != nil {
		return nil, apperr.Internal("login", err)
	}

	if !s.hasher.Verify(pw, user.PasswordHash) {
		s.record(ctx, audit.LogEntry{
			Action: audit.ActionLoginFailed, TenantID: &user.TenantID, UserID: &user.ID,
			Details: map[string]interface{}{"reason": "bad_password"},
		})
		return nil, apperr.New(apperr.ErrInvalidCredentials, "invalid_credentials")
	}
	if s.cfg.RequireActive && user.Status != models.UserStatusActive {
		s.record(ctx, audit.LogEntry{
			Action: audit.ActionLoginFailed, TenantID: &user.TenantID, UserID: &user.ID,
			Details: map[string]interface{}{"reason": "inactive"},
		})
		return nil, apperr.New(apperr.ErrInvalidCredentials, "invalid_credentials")
	}

	t, err := s.store.TenantByID(ctx, user.TenantID)
	if err != nil {
		return nil, apperr.Internal("login", err)
	}

	sess, err := s.issue(user, t)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.LogEntry{Action: audit.ActionLogin, TenantID: &user.TenantID, UserID: &user.ID})
	return sess, nil
}

type SignupInput struct {
	FullName string
	Email    string
	Password string
	Company  string
	Plan     string
}

// Signup provisions a tenant, its first ADMIN user and the tenant's
// subscription in one transaction, then logs the new admin in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (_ *Session, err error) {
	defer s.observe("signup", time.Now(), &err)

	in.FullName = strings.TrimSpace(in.FullName)
	in.Company = strings.TrimSpace(in.Company)
	in.Email = normalizeEmail(in.Email)
	switch {
	case in.FullName == "":
		return nil, apperr.New(apperr.ErrValidation, "full_name_required")
	case in.Company == "":
		return nil, apperr.New(apperr.ErrValidation, "company_required")
	case !strings.Contains(in.Email, "@"):
		return nil, apperr.New(apperr.ErrValidation, "invalid_email")
	}
	if err := s.hasher.Validate(in.Password); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}

	_, err = s.store.UserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.ErrConflict, "email_exists")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Internal("signup", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("signup", err)
	}

	plan := s.catalog.Plan(in.Plan)
	t := &models.Tenant{
		ID:           uuid.New(),
		Name:         in.Company,
		Domain:       s.catalog.Domain(in.Company),
		Plan:         plan,
		Status:       models.TenantStatusActive,
		PrimaryColor: defaultPrimaryColor,
	}
	u := &models.User{
		ID:           uuid.New(),
		TenantID:     t.ID,
		Name:         in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.UserStatusActive,
	}
	sub := &models.Subscription{
		ID:         uuid.New(),
		TenantID:   t.ID,
		Plan:       plan,
		Status:     models.SubscriptionStatusActive,
		MaxUsers:   s.catalog.SeatLimit(plan),
		ExpiryDate: s.catalog.Expiry(s.now()),
	}

	err = s.store.WithTx(ctx, func(q Queries) error {
		if err := q.InsertTenant(ctx, t); err != nil {
			return err
		}
		if err := q.InsertUser(ctx, u); err != nil {
			return err
		}
		return q.UpsertSubscription(ctx, sub)
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.Internal("signup", err)
	}

	s.logger.Info("tenant provisioned", "tenant_id", t.ID, "user_id", u.ID, "plan", plan)
	s.record(ctx, audit.LogEntry{
		Action: audit.ActionSignup, TenantID: &t.ID, UserID: &u.ID,
		ResourceType: "tenant", ResourceID: &t.ID,
		Details: map[string]interface{}{"plan": plan, "max_users": sub.MaxUsers},
	})
	return s.issue(u, t)
}

// Logout is stateless: tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, actor models.Principal) {
	var err error
	defer s.observe("logout", time.Now(), &err)
	s.record(ctx, audit.LogEntry{Action: audit.ActionLogout, TenantID: &actor.TenantID, UserID: &actor.ID})
}

// ForgotPassword mails a one-time reset link when email belongs to a
// user. It has no failure mode visible to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	var err error
	defer s.observe("forgot_password", time.Now(), &err)

	email = normalizeEmail(email)
	if email == "" {
		return
	}

	if s.limiter != nil && s.cfg.ForgotLimit > 0 {
		ok, lerr := s.limiter.Allow(ctx, "forgot:"+digest(email), s.cfg.ForgotLimit, s.cfg.ForgotWindow)
		switch {
		case lerr != nil:
			s.logger.Warn("forgot-password limiter unavailable", "error", lerr)
		case !ok:
			s.logger.Info("forgot-password throttled")
			return
		}
	}

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		err = nil
		return
	}
	if err != nil {
		s.logger.Error("forgot-password lookup failed", "error", err)
		return
	}

	raw, err := newResetToken()
	if err != nil {
		s.logger.Error("generate reset token", "error", err)
		return
	}
	tok := &models.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: digest(raw),
		ExpiresAt: s.now().Add(s.cfg.ResetTokenTTL),
	}
	if err = s.store.InsertResetToken(ctx, tok); err != nil {
		s.logger.Error("store reset token", "user_id", user.ID, "error", err)
		return
	}

	s.record(ctx, audit.LogEntry{Action: audit.ActionForgotPassword, TenantID: &user.TenantID, UserID: &user.ID})

	link := s.cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(raw)
	msg, merr := notify.PasswordReset(user.Email, link, s.cfg.ResetTokenTTL)
	if merr != nil {
		s.logger.Error("render reset email", "error", merr)
		return
	}
	s.deliver(ctx, msg, user.ID)
}

// ConfirmPasswordReset redeems a mailed reset token. The token and
// every other outstanding token of the user are spent in the same
// transaction as the password change.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) (_ *models.User, err error) {
	defer s.observe("reset_confirm", time.Now(), &err)

	if rawToken == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid_reset_token")
	}
	if err := s.hasher.Validate(newPassword); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, apperr.Internal("confirm reset", err)
	}

	now := s.now()
	var user *models.User
	err = s.store.WithTx(ctx, func(q Queries) error {
		tok, err := q.ResetTokenByHash(ctx, digest(rawToken))
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.New(apperr.ErrUnauthorized, "invalid_reset_token")
		}
		if err != nil {
			return err
		}
		if tok.UsedAt != nil || !now.Before(tok.ExpiresAt) {
			return apperr.New(apperr.ErrUnauthorized, "invalid_reset_token")
		}

		user, err = q.UpdatePassword(ctx, tok.UserID, hash, false, now)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.New(apperr.ErrUnauthorized, "invalid_reset_token")
		}
		if err != nil {
			return err
		}
		return q.ConsumeResetTokens(ctx, tok.UserID, now)
	})
	if errors.Is(err, apperr.ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.Internal("confirm reset", err)
	}

	s.record(ctx, audit.LogEntry{Action: audit.ActionResetConfirmed, TenantID: &user.TenantID, UserID: &user.ID})
	return user, nil
}

// ResetPassword is the self-service reset. The current password is
// skipped only while the account is flagged must_reset_password, which
// is the temporary-password flow; the flag is cleared on success.
func (s *Service) ResetPassword(ctx context.Context, actor models.Principal, userID uuid.UUID, currentPassword, newPassword string) (_ *models.User, err error) {
	defer s.observe("reset_password", time.Now(), &err)

	if actor.ID != userID {
		return nil, apperr.New(apperr.ErrForbidden, "not_account_owner")
	}
	if err := s.hasher.Validate(newPassword); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("reset password", err)
	}
	if !user.MustResetPassword && (currentPassword == "" || !s.hasher.Verify(currentPassword, user.PasswordHash)) {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "current_password_mismatch")
	}

	updated, err := s.setPassword(ctx, "reset password", userID, newPassword, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.LogEntry{
		Action: audit.ActionPasswordReset, ResourceType: "user", ResourceID: &userID,
		Details: map[string]interface{}{"forced": user.MustResetPassword},
	})
	return updated, nil
}

// AdminResetPassword sets a temporary password for a user of the
// admin's tenant and forces a change at next self-service reset.
func (s *Service) AdminResetPassword(ctx context.Context, actor models.Principal, targetID uuid.UUID, newPassword string) (_ *models.User, err error) {
	defer s.observe("admin_reset_password", time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.ErrForbidden, "admin_required")
	}
	if err := s.hasher.Validate(newPassword); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}

	target, err := s.store.UserByID(ctx, targetID)
	if err != nil {
		return nil, lookupErr("admin reset", err)
	}
	if target.TenantID != actor.TenantID {
		return nil, apperr.New(apperr.ErrNotFound, "user_not_found")
	}

	updated, err := s.setPassword(ctx, "admin reset", targetID, newPassword, true)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.LogEntry{Action: audit.ActionAdminPasswordReset, ResourceType: "user", ResourceID: &targetID})
	return updated, nil
}

// ChangePassword always verifies the current password, even for
// accounts flagged must_reset_password.
func (s *Service) ChangePassword(ctx context.Context, actor models.Principal, userID uuid.UUID, currentPassword, newPassword string) (_ *models.User, err error) {
	defer s.observe("change_password", time.Now(), &err)

	if actor.ID != userID {
		return nil, apperr.New(apperr.ErrForbidden, "not_account_owner")
	}
	if err := s.hasher.Validate(newPassword); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("change password", err)
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "current_password_mismatch")
	}

	updated, err := s.setPassword(ctx, "change password", userID, newPassword, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.LogEntry{Action: audit.ActionPasswordChanged, ResourceType: "user", ResourceID: &userID})
	return updated, nil
}

type CreateUserInput struct {
	Name     string
	Email    string
	Role     string
	Password string
	// MustResetPassword defaults to true.
	MustResetPassword *bool
}

// CreateUser adds a user to the admin's tenant within the tenant's seat
// limit and mails the temporary password.
func (s *Service) CreateUser(ctx context.Context, actor models.Principal, in CreateUserInput) (_ *models.User, err error) {
	defer s.observe("create_user", time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.ErrForbidden, "admin_required")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = models.RoleSales
	}
	in.Role = strings.ToUpper(in.Role)
	switch {
	case in.Name == "":
		return nil, apperr.New(apperr.ErrValidation, "name_required")
	case !strings.Contains(in.Email, "@"):
		return nil, apperr.New(apperr.ErrValidation, "invalid_email")
	case !models.ValidRole(in.Role):
		return nil, apperr.New(apperr.ErrValidation, "invalid_role")
	}
	if err := s.hasher.Validate(in.Password); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "weak_password", err)
	}
	mustReset := true
	if in.MustResetPassword != nil {
		mustReset = *in.MustResetPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}
	u := &models.User{
		ID:                uuid.New(),
		TenantID:          actor.TenantID,
		Name:              in.Name,
		Email:             in.Email,
		PasswordHash:      hash,
		Role:              in.Role,
		Status:            models.UserStatusActive,
		MustResetPassword: mustReset,
	}

	err = s.store.WithTx(ctx, func(q Queries) error {
		seats := s.catalog.SeatLimit("")
		sub, err := q.SubscriptionByTenant(ctx, actor.TenantID)
		switch {
		case err == nil:
			seats = sub.MaxUsers
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		n, err := q.CountUsers(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		if n >= seats {
			return apperr.New(apperr.ErrConflict, "seat_limit_reached")
		}
		return q.InsertUser(ctx, u)
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}

	s.record(ctx, audit.LogEntry{
		Action: audit.ActionUserCreated, ResourceType: "user", ResourceID: &u.ID,
		Details: map[string]interface{}{"role": u.Role},
	})

	msg, merr := notify.Welcome(u.Email, u.Name, in.Password)
	if merr != nil {
		s.logger.Error("render welcome email", "error", merr)
		return u, nil
	}
	s.deliver(ctx, msg, u.ID)
	return u, nil
}

func (s *Service) setPassword(ctx context.Context, op string, userID uuid.UUID, newPassword string, mustReset bool) (*models.User, error) {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	u, err := s.store.UpdatePassword(ctx, userID, hash, mustReset, s.now())
	if err != nil {
		return nil, lookupErr(op, err)
	}
	return u, nil
}

func (s *Service) issue(u *models.User, t *models.Tenant) (*Session, error) {
	token, exp, err := s.tokens.Issue(auth.Identity{
		Subject:  u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		Role:     u.Role,
	})
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{User: u, Tenant: t, AccessToken: token, ExpiresAt: exp}, nil
}

// deliver sends msg without letting the caller's cancellation or a
// delivery failure affect the response.
func (s *Service) deliver(ctx context.Context, msg notify.Message, userID uuid.UUID) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.mailer.Send(sendCtx, msg); err != nil {
		s.logger.Warn("email delivery failed", "user_id", userID, "subject", msg.Subject, "error", err)
	}
}

func (s *Service) record(ctx context.Context, entry audit.LogEntry) {
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", "action", entry.Action, "error", err)
	}
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.observer == nil {
		return
	}
	s.observer.AuthOperation(op, outcome(*err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func lookupErr(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, "user_not_found", err)
	}
	return apperr.Internal(op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// digest is the stored form of an opaque token.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
