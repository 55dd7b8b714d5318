package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/crmcore/internal/models"
)

// Queries is the data access the account workflow needs. Lookups return
// errors wrapping apperr.ErrNotFound for missing rows; inserts that hit
// the email uniqueness constraint return apperr.ErrConflict with reason
// "email_exists".
type Queries interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByEmail compares case-insensitively.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	TenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	// SubscriptionByTenant locks the row for the rest of the transaction.
	SubscriptionByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	CountUsers(ctx context.Context, tenantID uuid.UUID) (int, error)

	InsertTenant(ctx context.Context, t *models.Tenant) error
	InsertUser(ctx context.Context, u *models.User) error
	UpsertSubscription(ctx context.Context, s *models.Subscription) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, mustReset bool, at time.Time) (*models.User, error)

	InsertResetToken(ctx context.Context, t *models.PasswordResetToken) error
	// ResetTokenByHash locks the row for the rest of the transaction.
	ResetTokenByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error)
	// ConsumeResetTokens marks every unused token of the user as used.
	ConsumeResetTokens(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// Store is Queries plus transactions. fn's Queries is bound to the
// transaction; a non-nil return from fn rolls everything back.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
