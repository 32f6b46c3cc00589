package users_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClaims() *users.JWTClaims {
	now := time.Now()
	return &users.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "b269ae34-a764-41b5-94b1-2f2fae29b16c",
			Issuer:    "test-app",
			Audience:  jwt.ClaimStrings{"api", "web"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserRoles: []string{"member", "editor"},
		Scopes:    []string{"records:read"},
	}
}

func TestJWTClaimsAccessors(t *testing.T) {
	claims := newTestClaims()

	assert.Equal(t, "b269ae34-a764-41b5-94b1-2f2fae29b16c", claims.Subject())
	assert.Equal(t, []string{"member", "editor"}, claims.Roles())
	assert.Equal(t, []string{"api", "web"}, claims.Audience())
	assert.False(t, claims.Expires().IsZero())
	assert.False(t, claims.IssuedAt().IsZero())
}

func TestJWTClaimsUserID(t *testing.T) {
	t.Run("uid takes precedence", func(t *testing.T) {
		claims := newTestClaims()
		claims.UID = "explicit-uid"
		assert.Equal(t, "explicit-uid", claims.UserID())
	})

	t.Run("falls back to subject", func(t *testing.T) {
		claims := newTestClaims()
		claims.UID = ""
		assert.Equal(t, claims.Subject(), claims.UserID())
	})
}

func TestJWTClaimsHasRole(t *testing.T) {
	claims := newTestClaims()

	assert.True(t, claims.HasRole("member"))
	assert.True(t, claims.HasRole("editor"))
	assert.False(t, claims.HasRole("administrator"))
	assert.False(t, claims.HasRole(""))
}

func TestJWTClaimsHasScope(t *testing.T) {
	claims := newTestClaims()

	assert.True(t, claims.HasScope("records:read"))
	assert.False(t, claims.HasScope("records:write"))
}

func TestJWTClaimsZeroTimes(t *testing.T) {
	claims := &users.JWTClaims{}

	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}

func TestJWTClaimsMetadata(t *testing.T) {
	claims := newTestClaims()
	assert.Nil(t, claims.ClaimsMetadata())

	claims.Metadata = map[string]any{"tenant": "acme"}
	assert.Equal(t, "acme", claims.ClaimsMetadata()["tenant"])
}

func TestJWTClaimsJSONShape(t *testing.T) {
	claims := newTestClaims()
	claims.UID = claims.Subject()
	claims.Metadata = map[string]any{"tenant": "acme"}

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))

	// wire names consumed by downstream services
	assert.Contains(t, raw, "uid")
	assert.Contains(t, raw, "roles")
	assert.Contains(t, raw, "scopes")
	assert.Contains(t, raw, "metadata")
	assert.NotContains(t, raw, "UserRoles")
}
