package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TenantStatusActive       = "active"
	SubscriptionStatusActive = "active"
)

type Tenant struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Domain       string    `json:"domain" db:"domain"`
	Plan         string    `json:"plan" db:"plan"`
	Status       string    `json:"status" db:"status"`
	LogoURL      string    `json:"logoUrl" db:"logo_url"`
	PrimaryColor string    `json:"primaryColor" db:"primary_color"`
	DarkMode     bool      `json:"darkMode" db:"dark_mode"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type Subscription struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenantId" db:"tenant_id"`
	Plan       string    `json:"plan" db:"plan"`
	Status     string    `json:"status" db:"status"`
	MaxUsers   int       `json:"maxUsers" db:"max_users"`
	ExpiryDate time.Time `json:"expiryDate" db:"expiry_date"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
