package users_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured token expired error",
			err:      users.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      users.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := users.IsTokenExpiredError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured malformed error",
			err:      users.ErrTokenMalformed,
			expected: true,
		},
		{
			name:     "Legacy malformed error (string match)",
			err:      errors.New("token is malformed"),
			expected: true,
		},
		{
			name:     "Legacy missing JWT error (string match)",
			err:      errors.New("missing or malformed JWT"),
			expected: true,
		},
		{
			name:     "Different legacy error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := users.IsMalformedError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrIdentityNotFound", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, users.ErrIdentityNotFound.Category)
		assert.Equal(t, "identity not found", users.ErrIdentityNotFound.Message)
	})

	t.Run("ErrMismatchedHashAndPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrMismatchedHashAndPassword.Category)
		assert.Equal(t, users.TextCodeInvalidCreds, users.ErrMismatchedHashAndPassword.TextCode)
		assert.Equal(t, "the credentials provided are invalid", users.ErrMismatchedHashAndPassword.Message)
	})

	t.Run("ErrTooManyLoginAttempts", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryRateLimit, users.ErrTooManyLoginAttempts.Category)
		assert.Equal(t, users.TextCodeTooManyAttempts, users.ErrTooManyLoginAttempts.TextCode)
	})

	t.Run("ErrAccountInactive", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrAccountInactive.Category)
		assert.Equal(t, users.TextCodeAccountInactive, users.ErrAccountInactive.TextCode)
	})

	t.Run("ErrAccountUnverified", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrAccountUnverified.Category)
		assert.Equal(t, users.TextCodeAccountUnverified, users.ErrAccountUnverified.TextCode)
	})

	t.Run("ErrEmailConflict", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, users.ErrEmailConflict.Category)
		assert.Equal(t, users.TextCodeEmailInUse, users.ErrEmailConflict.TextCode)
	})

	t.Run("feature disabled errors are authz", func(t *testing.T) {
		for _, err := range []*goerrors.Error{
			users.ErrSignupDisabled,
			users.ErrVerificationDisabled,
			users.ErrPasswordResetDisabled,
		} {
			assert.Equal(t, goerrors.CategoryAuthz, err.Category)
		}
	})

	t.Run("role errors", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, users.ErrRoleNotFound.Category)
		assert.Equal(t, goerrors.CategoryConflict, users.ErrRoleExists.Category)
		assert.Equal(t, goerrors.CategoryConflict, users.ErrRoleAlreadyAssigned.Category)
		assert.Equal(t, goerrors.CategoryConflict, users.ErrRoleNotAssigned.Category)
	})

	t.Run("guard errors", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrAuthRequired.Category)
		assert.Equal(t, users.TextCodeAuthRequired, users.ErrAuthRequired.TextCode)
		assert.Equal(t, goerrors.CategoryAuthz, users.ErrInsufficientRole.Category)
		assert.Equal(t, users.TextCodeInsufficientRole, users.ErrInsufficientRole.TextCode)
	})

	t.Run("ErrUnableToFindSession", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrUnableToFindSession.Category)
		assert.Equal(t, users.TextCodeSessionNotFound, users.ErrUnableToFindSession.TextCode)
	})

	t.Run("ErrUnableToDecodeSession", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrUnableToDecodeSession.Category)
		assert.Equal(t, users.TextCodeSessionDecodeError, users.ErrUnableToDecodeSession.TextCode)
	})

	t.Run("ErrUnableToMapClaims", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrUnableToMapClaims.Category)
		assert.Equal(t, users.TextCodeClaimsMappingError, users.ErrUnableToMapClaims.TextCode)
	})

	t.Run("ErrUnableToParseData", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryBadInput, users.ErrUnableToParseData.Category)
		assert.Equal(t, users.TextCodeDataParseError, users.ErrUnableToParseData.TextCode)
	})

	t.Run("ErrNoEmptyString", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, users.ErrNoEmptyString.Category)
		assert.Equal(t, users.TextCodeEmptyPassword, users.ErrNoEmptyString.TextCode)
	})

	t.Run("ErrTokenExpired", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, users.ErrTokenExpired.Category)
		assert.Equal(t, users.TextCodeTokenExpired, users.ErrTokenExpired.TextCode)
	})

	t.Run("ErrImmutableClaimMutation", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryInternal, users.ErrImmutableClaimMutation.Category)
		assert.Equal(t, users.TextCodeImmutableClaim, users.ErrImmutableClaimMutation.TextCode)
	})
}
