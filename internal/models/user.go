package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "ADMIN"
	RoleSales = "SALES"

	UserStatusActive = "active"
)

// ValidRole reports whether role is one the system assigns.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleSales
}

type User struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TenantID          uuid.UUID `json:"tenantId" db:"tenant_id"`
	Name              string    `json:"name" db:"name"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	Role              string    `json:"role" db:"role"`
	Status            string    `json:"status" db:"status"`
	AvatarURL         string    `json:"avatarUrl" db:"avatar_url"`
	MustResetPassword bool      `json:"mustResetPassword" db:"must_reset_password"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// Principal returns the acting identity described by the user's row.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, TenantID: u.TenantID, Email: u.Email, Role: u.Role}
}

// Principal is the authenticated identity of a request. It is rebuilt
// from the live user row on every request and never persisted.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// PasswordResetToken stores only the SHA-256 hex of the mailed token.
type PasswordResetToken struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}
