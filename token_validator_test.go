package users_test

import (
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsForUser(id string) users.AuthClaims {
	return &users.JWTClaims{UID: id}
}

func TestTokenValidatorFunc(t *testing.T) {
	t.Run("delegates to function", func(t *testing.T) {
		validator := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
			return claimsForUser("user-1"), nil
		})

		claims, err := validator.Validate("token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
	})

	t.Run("nil func fails safely", func(t *testing.T) {
		var validator users.TokenValidatorFunc

		_, err := validator.Validate("token")
		assert.Equal(t, users.ErrUnableToDecodeSession, err)
	})
}

func TestMultiTokenValidatorFirstMatchWins(t *testing.T) {
	first := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		return claimsForUser("from-first"), nil
	})
	second := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		t.Fatal("second validator should not run")
		return nil, nil
	})

	validator := users.NewMultiTokenValidator(first, second)

	claims, err := validator.Validate("token")
	require.NoError(t, err)
	assert.Equal(t, "from-first", claims.UserID())
}

func TestMultiTokenValidatorFallsThroughMalformed(t *testing.T) {
	calls := 0
	malformed := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		calls++
		return nil, users.ErrTokenMalformed
	})
	accepting := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		return claimsForUser("from-second"), nil
	})

	validator := users.NewMultiTokenValidator(malformed, accepting)

	claims, err := validator.Validate("token")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "from-second", claims.UserID())
}

func TestMultiTokenValidatorStopsOnOtherErrors(t *testing.T) {
	expired := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		return nil, users.ErrTokenExpired
	})
	second := users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
		t.Fatal("expired tokens should not fall through")
		return nil, nil
	})

	validator := users.NewMultiTokenValidator(expired, second)

	_, err := validator.Validate("token")
	assert.Equal(t, users.ErrTokenExpired, err)
}

func TestMultiTokenValidatorExhausted(t *testing.T) {
	t.Run("returns last malformed error", func(t *testing.T) {
		validator := users.NewMultiTokenValidator(
			users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
				return nil, users.ErrTokenMalformed
			}),
			users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
				return nil, users.ErrTokenMalformed
			}),
		)

		_, err := validator.Validate("token")
		assert.Equal(t, users.ErrTokenMalformed, err)
	})

	t.Run("no validators", func(t *testing.T) {
		validator := users.NewMultiTokenValidator()

		_, err := validator.Validate("token")
		assert.Equal(t, users.ErrTokenMalformed, err)
	})

	t.Run("nil validators are skipped", func(t *testing.T) {
		validator := users.NewMultiTokenValidator(nil, users.TokenValidatorFunc(func(token string) (users.AuthClaims, error) {
			return claimsForUser("user-1"), nil
		}))

		claims, err := validator.Validate("token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
	})
}
