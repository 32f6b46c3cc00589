package users

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := &User{Username: "tester"}

	ctx := WithContext(context.Background(), user)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &JWTClaims{UID: "user-1", UserRoles: []string{"member"}}

	ctx := WithClaimsContext(context.Background(), claims)
	got, ok := GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID())

	_, ok = GetClaims(context.Background())
	assert.False(t, ok)
}

func TestSessionContextRoundTrip(t *testing.T) {
	session := &SessionObject{UserID: "user-1"}

	ctx := WithSessionContext(context.Background(), session)
	got, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.GetUserID())

	_, ok = SessionFromContext(context.Background())
	assert.False(t, ok)
}

func TestHasRoleFromClaims(t *testing.T) {
	claims := &JWTClaims{UserRoles: []string{"member", "editor"}}
	ctx := WithClaimsContext(context.Background(), claims)

	assert.True(t, HasRole(ctx, "member"))
	assert.False(t, HasRole(ctx, "administrator"))

	assert.True(t, HasAnyRole(ctx, "administrator", "editor"))
	assert.False(t, HasAnyRole(ctx, "administrator", "owner"))

	assert.True(t, HasAllRoles(ctx, "member", "editor"))
	assert.False(t, HasAllRoles(ctx, "member", "administrator"))
	assert.False(t, HasAllRoles(ctx), "empty role list never passes")
}

func TestHasRoleFromSession(t *testing.T) {
	session := &SessionObject{
		Data: map[string]any{"roles": []string{"member"}},
	}
	ctx := WithSessionContext(context.Background(), session)

	assert.True(t, HasRole(ctx, "member"))
	assert.False(t, HasRole(ctx, "administrator"))
}

func TestHasRoleClaimsTakePrecedence(t *testing.T) {
	claims := &JWTClaims{UserRoles: []string{"member"}}
	session := &SessionObject{
		Data: map[string]any{"roles": []string{"administrator"}},
	}

	ctx := WithClaimsContext(context.Background(), claims)
	ctx = WithSessionContext(ctx, session)

	assert.True(t, HasRole(ctx, "member"))
	assert.False(t, HasRole(ctx, "administrator"), "session roles are ignored when claims exist")
}

func TestHasRoleEmptyContext(t *testing.T) {
	assert.False(t, HasRole(context.Background(), "member"))
}

func TestGetRouterClaims(t *testing.T) {
	t.Run("default key", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &JWTClaims{UID: "user-1"}

		claims, ok := GetRouterClaims(ctx, "")
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.UserID())
	})

	t.Run("custom key", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["identity"] = &JWTClaims{UID: "user-1"}
		ctx.On("Locals", "user").Return(nil)

		_, ok := GetRouterClaims(ctx, "user")
		assert.False(t, ok)

		claims, ok := GetRouterClaims(ctx, "identity")
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.UserID())
	})

	t.Run("wrong value type", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = "not-claims"

		_, ok := GetRouterClaims(ctx, "")
		assert.False(t, ok)
	})
}

func TestGetRouterSession(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock["user"] = &SessionObject{UserID: "user-1"}

	session, ok := GetRouterSession(ctx, "")
	require.True(t, ok)
	assert.Equal(t, "user-1", session.GetUserID())
}

func TestHasRoleFromRouter(t *testing.T) {
	t.Run("claims", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &JWTClaims{UserRoles: []string{"member"}}

		assert.True(t, HasRoleFromRouter(ctx, "member"))
		assert.False(t, HasRoleFromRouter(ctx, "administrator"))
	})

	t.Run("session", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &SessionObject{
			Data: map[string]any{"roles": []string{"member"}},
		}

		assert.True(t, HasRoleFromRouter(ctx, "member"))
	})

	t.Run("empty", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("Locals", "user").Return(nil)
		assert.False(t, HasRoleFromRouter(ctx, "member"))
	})
}
