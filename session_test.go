package users_test

import (
	"testing"

	"github.com/google/uuid"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObjectAccessors(t *testing.T) {
	id := uuid.NewString()
	session := &users.SessionObject{
		UserID:   id,
		Audience: []string{"api"},
		Issuer:   "test-app",
		Data:     map[string]any{"roles": []string{"member"}},
	}

	assert.Equal(t, id, session.GetUserID())
	assert.Equal(t, []string{"api"}, session.GetAudience())
	assert.Equal(t, "test-app", session.GetIssuer())
	assert.Nil(t, session.GetIssuedAt())
	assert.Equal(t, []string{"member"}, session.GetRoles())

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed.String())
}

func TestSessionObjectGetUserUUIDInvalid(t *testing.T) {
	session := &users.SessionObject{UserID: "auth0|12345"}

	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestSessionObjectGetRoles(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected []string
	}{
		{
			name:     "nil data",
			data:     nil,
			expected: nil,
		},
		{
			name:     "no roles key",
			data:     map[string]any{"other": true},
			expected: nil,
		},
		{
			name:     "string slice",
			data:     map[string]any{"roles": []string{"member", "editor"}},
			expected: []string{"member", "editor"},
		},
		{
			name:     "any slice after JSON round trip",
			data:     map[string]any{"roles": []any{"member", "editor"}},
			expected: []string{"member", "editor"},
		},
		{
			name:     "any slice with non string entries",
			data:     map[string]any{"roles": []any{"member", 42}},
			expected: []string{"member"},
		},
		{
			name:     "unexpected shape",
			data:     map[string]any{"roles": "member"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &users.SessionObject{Data: tt.data}
			assert.Equal(t, tt.expected, session.GetRoles())
		})
	}
}

func TestSessionObjectRoleChecks(t *testing.T) {
	session := &users.SessionObject{
		Data: map[string]any{"roles": []string{"member", "editor"}},
	}

	assert.True(t, session.HasRole("member"))
	assert.False(t, session.HasRole("administrator"))

	assert.True(t, session.HasAnyRole("administrator", "editor"))
	assert.False(t, session.HasAnyRole("administrator", "owner"))

	assert.True(t, session.HasAllRoles("member", "editor"))
	assert.False(t, session.HasAllRoles("member", "administrator"))
	assert.True(t, session.HasAllRoles())
}
