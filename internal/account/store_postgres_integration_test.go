package account

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/auth"
	"github.com/nikhilbhutani/crmcore/internal/config"
	"github.com/nikhilbhutani/crmcore/internal/database"
	"github.com/nikhilbhutani/crmcore/internal/password"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
	"github.com/nikhilbhutani/crmcore/migrations"
)

// Integration tests run only when CRM_TEST_DATABASE_URL points at a
// disposable database.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("CRM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CRM_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, migrations.FS))
	return pool
}

func pgService(t *testing.T, pool *pgxpool.Pool, catalog *tenant.Catalog) (*Service, *outbox) {
	t.Helper()
	tokens, err := auth.NewTokenService("pg-test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	mail := &outbox{}
	svc := NewService(NewPostgresStore(pool), password.NewHasher(bcrypt.MinCost, 8), tokens, catalog,
		Config{FrontendURL: "http://crm.test", ResetTokenTTL: time.Hour},
		WithMailer(mail), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return svc, mail
}

func uniqueEmail(prefix string) string {
	return prefix + "+" + uuid.NewString()[:8] + "@example.com"
}

func TestPostgresSignupLoginAndReset(t *testing.T) {
	pool := testPool(t)
	svc, mail := pgService(t, pool, tenant.DefaultCatalog())
	ctx := context.Background()
	email := uniqueEmail("ada")

	sess, err := svc.Signup(ctx, SignupInput{FullName: "Ada", Email: email, Password: "Secret123!", Company: "Acme Corp", Plan: "pro"})
	require.NoError(t, err)
	require.Equal(t, "acme-corp.crm.io", sess.Tenant.Domain)

	var maxUsers int
	require.NoError(t, pool.QueryRow(ctx, `SELECT max_users FROM subscriptions WHERE tenant_id = $1`, sess.Tenant.ID).Scan(&maxUsers))
	require.Equal(t, 25, maxUsers)

	_, err = svc.Signup(ctx, SignupInput{FullName: "Ada", Email: email, Password: "Secret123!", Company: "Again"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	login, err := svc.Login(ctx, email, "Secret123!")
	require.NoError(t, err)
	require.Equal(t, sess.User.ID, login.User.ID)

	svc.ForgotPassword(ctx, email)
	raw := mailedToken(t, mail.messages()[0])

	_, err = svc.ConfirmPasswordReset(ctx, raw, "BrandNew456!")
	require.NoError(t, err)
	_, err = svc.ConfirmPasswordReset(ctx, raw, "BrandNew789!")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, email, "BrandNew456!")
	require.NoError(t, err)
}

func TestPostgresSignupRollsBack(t *testing.T) {
	pool := testPool(t)
	// A non-positive seat limit violates the subscriptions CHECK, failing
	// the last statement of the signup transaction.
	broken := tenant.NewCatalog(tenant.CatalogConfig{SeatLimits: map[string]int{"broken": -1}})
	svc, _ := pgService(t, pool, broken)
	ctx := context.Background()
	email := uniqueEmail("rollback")
	company := "Rollback " + uuid.NewString()

	_, err := svc.Signup(ctx, SignupInput{FullName: "R", Email: email, Password: "Secret123!", Company: company, Plan: "broken"})
	require.ErrorIs(t, err, apperr.ErrInternal)

	var tenants, users int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants WHERE name = $1`, company).Scan(&tenants))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE lower(email) = lower($1)`, email).Scan(&users))
	require.Zero(t, tenants)
	require.Zero(t, users)
}

func TestPostgresCreateUserSeatLimit(t *testing.T) {
	pool := testPool(t)
	one := tenant.NewCatalog(tenant.CatalogConfig{SeatLimits: map[string]int{"solo": 2}})
	svc, _ := pgService(t, pool, one)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, SignupInput{FullName: "A", Email: uniqueEmail("owner"), Password: "Secret123!", Company: "Solo", Plan: "solo"})
	require.NoError(t, err)
	admin := sess.User.Principal()

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Name: "B", Email: uniqueEmail("b"), Password: "TempPass123!"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Name: "C", Email: uniqueEmail("c"), Password: "TempPass123!"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Equal(t, "seat_limit_reached", apperr.Reason(err))
}
