package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/models"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists accounts in PostgreSQL. The pool is owned by
// the caller.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{db: pool}, pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgQueries struct {
	db dbtx
}

const userColumns = `id, tenant_id, name, email, password_hash, role, status,
	COALESCE(avatar_url, ''), must_reset_password, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.AvatarURL, &u.MustResetPassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (q pgQueries) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("user "+id.String(), err)
	}
	return u, nil
}

func (q pgQueries) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, notFound("user by email", err)
	}
	return u, nil
}

func (q pgQueries) TenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := q.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(domain, ''), plan, status, COALESCE(logo_url, ''),
		        COALESCE(primary_color, ''), dark_mode, created_at, updated_at
		 FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.Status, &t.LogoURL,
		&t.PrimaryColor, &t.DarkMode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound("tenant "+id.String(), err)
	}
	return &t, nil
}

func (q pgQueries) SubscriptionByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var s models.Subscription
	err := q.db.QueryRow(ctx,
		`SELECT id, tenant_id, plan, status, max_users, expiry_date, created_at, updated_at
		 FROM subscriptions WHERE tenant_id = $1
		 FOR UPDATE`, tenantID,
	).Scan(&s.ID, &s.TenantID, &s.Plan, &s.Status, &s.MaxUsers, &s.ExpiryDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound("subscription for tenant "+tenantID.String(), err)
	}
	return &s, nil
}

func (q pgQueries) CountUsers(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (q pgQueries) InsertTenant(ctx context.Context, t *models.Tenant) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, domain, plan, status, logo_url, primary_color, dark_mode)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Domain, t.Plan, t.Status, t.LogoURL, t.PrimaryColor, t.DarkMode,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (q pgQueries) InsertUser(ctx context.Context, u *models.User) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO users (id, tenant_id, name, email, password_hash, role, status, avatar_url, must_reset_password)
		 VALUES ($1, $2, $3, lower($4), $5, $6, $7, NULLIF($8, ''), $9)
		 RETURNING email, created_at, updated_at`,
		u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, u.Role, u.Status, u.AvatarURL, u.MustResetPassword,
	).Scan(&u.Email, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.ErrConflict, "email_exists", err)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q pgQueries) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO subscriptions (id, tenant_id, plan, status, max_users, expiry_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id) DO UPDATE
		   SET plan = EXCLUDED.plan, status = EXCLUDED.status, max_users = EXCLUDED.max_users,
		       expiry_date = EXCLUDED.expiry_date, updated_at = now()
		 RETURNING id, created_at, updated_at`,
		s.ID, s.TenantID, s.Plan, s.Status, s.MaxUsers, s.ExpiryDate,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (q pgQueries) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, mustReset bool, at time.Time) (*models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx,
		`UPDATE users SET password_hash = $2, must_reset_password = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, hash, mustReset, at))
	if err != nil {
		return nil, notFound("update password for "+userID.String(), err)
	}
	return u, nil
}

func (q pgQueries) InsertResetToken(ctx context.Context, t *models.PasswordResetToken) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (q pgQueries) ResetTokenByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := q.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at
		 FROM password_reset_tokens WHERE token_hash = $1
		 FOR UPDATE`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound("reset token", err)
	}
	return &t, nil
}

func (q pgQueries) ConsumeResetTokens(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = $2 WHERE user_id = $1 AND used_at IS NULL`,
		userID, at)
	if err != nil {
		return fmt.Errorf("consume reset tokens: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
