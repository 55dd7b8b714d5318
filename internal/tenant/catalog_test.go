package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/crmcore/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCatalog_SeatLimit(t *testing.T) {
	c := DefaultCatalog()

	require.Equal(t, 5, c.SeatLimit("basic"))
	require.Equal(t, 25, c.SeatLimit("pro"))
	require.Equal(t, 25, c.SeatLimit(" PRO "))
	require.Equal(t, 999, c.SeatLimit("enterprise"))
	require.Equal(t, 5, c.SeatLimit("platinum"))
	require.Equal(t, 5, c.SeatLimit(""))
}

func TestCatalog_Injected(t *testing.T) {
	c := NewCatalog(CatalogConfig{
		SeatLimits:       map[string]int{"Team": 10},
		DefaultSeatLimit: 2,
		DefaultPlan:      "team",
		SubscriptionTerm: 30 * 24 * time.Hour,
		DomainSuffix:     ".example.org",
	})

	require.Equal(t, 10, c.SeatLimit("team"))
	require.Equal(t, 2, c.SeatLimit("basic"))
	require.Equal(t, "team", c.Plan(""))
	require.Equal(t, "acme.example.org", c.Domain("Acme"))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, now.Add(30*24*time.Hour), c.Expiry(now))
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Acme":              "acme",
		"Acme Corp":         "acme-corp",
		"  Big   Data  Co ": "big-data-co",
		"O'Reilly & Sons":   "oreilly-sons",
		"Zürich GmbH":       "zrich-gmbh",
		"!!!":               "tenant",
		"":                  "tenant",
	}
	for in, want := range cases {
		require.Equal(t, want, Slug(in), in)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	_, ok := PrincipalFromContext(ctx)
	require.False(t, ok)

	p := models.Principal{ID: uuid.New(), TenantID: uuid.New(), Email: "a@x.com", Role: models.RoleAdmin}
	ctx = WithPrincipal(ctx, p)

	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, p, got)
}
