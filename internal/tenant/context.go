package tenant

import (
	"context"

	"github.com/nikhilbhutani/crmcore/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}
