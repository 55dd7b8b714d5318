package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePlanLimits(t *testing.T) {
	got, err := ParsePlanLimits("basic=5, Pro=25 ,enterprise=999")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"basic": 5, "pro": 25, "enterprise": 999}, got)

	got, err = ParsePlanLimits("")
	require.NoError(t, err)
	require.Empty(t, got)

	for _, bad := range []string{"basic", "basic=zero", "=5", "pro=-1"} {
		_, err := ParsePlanLimits(bad)
		require.Error(t, err, bad)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("PLAN_SEAT_LIMITS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	require.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	require.Equal(t, 5, cfg.Tenant.PlanSeatLimits["basic"])
	require.Equal(t, 25, cfg.Tenant.PlanSeatLimits["pro"])
	require.Equal(t, 999, cfg.Tenant.PlanSeatLimits["enterprise"])
	require.Equal(t, 5, cfg.Tenant.DefaultSeatLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_PORT", "8088")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("FRONTEND_URL", "https://crm.example.com/")
	t.Setenv("AUTH_REQUIRE_ACTIVE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8088", cfg.Addr())
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, "https://crm.example.com", cfg.Server.FrontendURL)
	require.True(t, cfg.Auth.RequireActive)
}

func TestValidate_MissingSecret(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{AccessTokenTTL: time.Hour}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestParsePrefixes(t *testing.T) {
	got, err := ParsePrefixes("10.0.0.0/8, 192.168.1.7 ,::1")
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("::1/128"),
	}, got)

	got, err = ParsePrefixes("")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ParsePrefixes("10.0.0.0/33")
	require.Error(t, err)
	_, err = ParsePrefixes("proxy.internal")
	require.Error(t, err)
}
