package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/models"
)

// UserFinder is the point lookup the resolver needs. It returns an error
// wrapping apperr.ErrNotFound for unknown ids.
type UserFinder interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Resolver turns a bearer token into the principal of the live user row.
// Role and tenant always come from the row, not from the token claims.
type Resolver struct {
	tokens        *TokenService
	users         UserFinder
	requireActive bool
}

func NewResolver(tokens *TokenService, users UserFinder, requireActive bool) *Resolver {
	return &Resolver{tokens: tokens, users: users, requireActive: requireActive}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (models.Principal, error) {
	id, err := r.tokens.Verify(token)
	if err != nil {
		return models.Principal{}, apperr.Wrap(apperr.ErrUnauthorized, "invalid_token", err)
	}

	user, err := r.users.UserByID(ctx, id.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Principal{}, apperr.New(apperr.ErrUnauthorized, "unknown_subject")
	}
	if err != nil {
		return models.Principal{}, apperr.Internal("resolve principal", fmt.Errorf("user %s: %w", id.Subject, err))
	}

	if r.requireActive && user.Status != models.UserStatusActive {
		return models.Principal{}, apperr.New(apperr.ErrUnauthorized, "inactive_user")
	}

	p := user.Principal()
	if p.Email == "" {
		p.Email = id.Email
	}
	return p, nil
}
