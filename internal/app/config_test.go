package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("RBAC_UNSCOPED_POLICY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "odyssey-rbac", cfg.AuthTokenIssuer)
	require.Equal(t, time.Hour, cfg.AuthTokenTTL)
	require.Equal(t, 5*time.Minute, cfg.RBACCacheTTL)
	require.False(t, cfg.IsProduction())

	policy, err := cfg.UnscopedPolicy()
	require.NoError(t, err)
	require.Equal(t, rbac.UnscopedDeny, policy)
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("RBAC_UNSCOPED_POLICY", "sometimes")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestTestModeFlag(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
