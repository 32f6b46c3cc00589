package users_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimpleConfigDefaults(t *testing.T) {
	cfg := users.NewSimpleConfig("a-signing-key-with-enough-entropy")

	assert.Equal(t, users.StrategyJWT, cfg.GetAuthStrategy())
	assert.Equal(t, "HS256", cfg.GetSigningMethod())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, 72, cfg.GetExtendedTokenDuration())
	assert.Equal(t, "header:Authorization,cookie:user", cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "session", cfg.GetSessionCookieName())
	assert.Equal(t, "rejected_route", cfg.GetRejectedRouteKey())
	assert.Equal(t, "/", cfg.GetRejectedRouteDefault())
	assert.Nil(t, cfg.GetSessionStore())
}

func TestSimpleConfigZeroValueGetters(t *testing.T) {
	cfg := &users.SimpleConfig{}

	assert.Equal(t, users.StrategyJWT, cfg.GetAuthStrategy())
	assert.Equal(t, "HS256", cfg.GetSigningMethod())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, "header:Authorization,cookie:user", cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "session", cfg.GetSessionCookieName())
	assert.Equal(t, "rejected_route", cfg.GetRejectedRouteKey())
	assert.Equal(t, "/", cfg.GetRejectedRouteDefault())
}

func TestSimpleConfigValidate(t *testing.T) {
	validKey := "a-signing-key-with-enough-entropy"

	tests := []struct {
		name    string
		mutate  func(*users.SimpleConfig)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *users.SimpleConfig) {},
		},
		{
			name:    "missing signing key",
			mutate:  func(c *users.SimpleConfig) { c.SigningKey = "" },
			wantErr: true,
		},
		{
			name:    "short signing key",
			mutate:  func(c *users.SimpleConfig) { c.SigningKey = "too-short" },
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *users.SimpleConfig) { c.AuthStrategy = "oauth" },
			wantErr: true,
		},
		{
			name:    "unknown signing method",
			mutate:  func(c *users.SimpleConfig) { c.SigningMethod = "RS256" },
			wantErr: true,
		},
		{
			name:    "negative token expiration",
			mutate:  func(c *users.SimpleConfig) { c.TokenExpiration = -1 },
			wantErr: true,
		},
		{
			name: "session strategy with store",
			mutate: func(c *users.SimpleConfig) {
				c.AuthStrategy = users.StrategySession
				c.SessionStore = users.NewMemorySessionStore()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := users.NewSimpleConfig(validKey)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSimpleConfigValidateSessionStrategyNeedsStore(t *testing.T) {
	cfg := users.NewSimpleConfig("a-signing-key-with-enough-entropy")
	cfg.AuthStrategy = users.StrategySession

	err := cfg.Validate()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, users.TextCodeSessionStoreRequired, richErr.TextCode)
}
