package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserEnsureStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		user     User
		expected AccountStatus
	}{
		{
			name:     "active and verified",
			user:     User{IsActive: true, IsVerified: true},
			expected: StatusActive,
		},
		{
			name:     "active but unverified",
			user:     User{IsActive: true},
			expected: StatusUnverified,
		},
		{
			name:     "inactive",
			user:     User{IsVerified: true},
			expected: StatusDeactivated,
		},
		{
			name:     "soft deleted wins over everything",
			user:     User{IsActive: true, IsVerified: true, DeletedAt: &now},
			expected: StatusDeleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.EnsureStatus())
		})
	}
}

func TestUserUpdateStatus(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		u := &User{}
		u.UpdateStatus(StatusActive)
		assert.True(t, u.IsActive)
		assert.True(t, u.IsVerified)
	})

	t.Run("unverified", func(t *testing.T) {
		u := &User{IsVerified: true}
		u.UpdateStatus(StatusUnverified)
		assert.True(t, u.IsActive)
		assert.False(t, u.IsVerified)
	})

	t.Run("deactivated keeps verification", func(t *testing.T) {
		u := &User{IsActive: true, IsVerified: true}
		u.UpdateStatus(StatusDeactivated)
		assert.False(t, u.IsActive)
		assert.True(t, u.IsVerified)
	})

	t.Run("deleted stamps deleted_at", func(t *testing.T) {
		u := &User{IsActive: true}
		u.UpdateStatus(StatusDeleted)
		assert.NotNil(t, u.DeletedAt)
	})

	t.Run("round trips through EnsureStatus", func(t *testing.T) {
		for _, status := range []AccountStatus{StatusActive, StatusUnverified, StatusDeactivated, StatusDeleted} {
			u := &User{}
			u.UpdateStatus(status)
			assert.Equal(t, status, u.EnsureStatus())
		}
	})
}

func TestUserCanLogin(t *testing.T) {
	now := time.Now()

	assert.True(t, (&User{IsActive: true}).CanLogin())
	assert.False(t, (&User{}).CanLogin())
	assert.False(t, (&User{IsActive: true, DeletedAt: &now}).CanLogin())
}

func TestUserRoleHelpers(t *testing.T) {
	u := &User{
		Roles: []*Role{
			{Name: "member"},
			nil,
			{Name: "editor"},
		},
	}

	assert.Equal(t, []string{"member", "editor"}, u.RoleNames())
	assert.True(t, u.HasRole("member"))
	assert.False(t, u.HasRole("administrator"))

	empty := &User{}
	assert.Nil(t, empty.RoleNames())
	assert.False(t, empty.HasRole("member"))
}

func TestUserAddMetadata(t *testing.T) {
	u := &User{}
	u.AddMetadata("source", "signup-form").AddMetadata("campaign", "spring")

	assert.Equal(t, "signup-form", u.Metadata["source"])
	assert.Equal(t, "spring", u.Metadata["campaign"])
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Tester@Example.COM", "tester@example.com"},
		{"  tester@example.com  ", "tester@example.com"},
		{"already@lower.case", "already@lower.case"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeEmail(tt.input))
	}
}
