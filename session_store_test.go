package users_test

import (
	"context"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionForUser(userID string) *users.SessionObject {
	return &users.SessionObject{
		UserID: userID,
		Issuer: "test-app",
		Data:   map[string]any{"roles": []string{"member"}},
	}
}

func TestMemorySessionStoreSaveAndGet(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), time.Minute))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.GetUserID())
	assert.Equal(t, []string{"member"}, got.GetRoles())
}

func TestMemorySessionStoreSaveNilSession(t *testing.T) {
	store := users.NewMemorySessionStore()

	err := store.Save(context.Background(), "sid-1", nil, time.Minute)
	assert.Equal(t, users.ErrUnableToParseData, err)
}

func TestMemorySessionStoreGetMissing(t *testing.T) {
	store := users.NewMemorySessionStore()

	_, err := store.Get(context.Background(), "nope")
	assert.Equal(t, users.ErrUnableToFindSession, err)
}

func TestMemorySessionStoreExpiration(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, "sid-1")
	assert.Equal(t, users.ErrUnableToFindSession, err)
	assert.Equal(t, 0, store.Len(), "expired sessions are evicted on read")
}

func TestMemorySessionStoreZeroTTLNeverExpires(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), 0))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.GetUserID())
}

func TestMemorySessionStoreRenew(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	t.Run("extends lifetime", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), 50*time.Millisecond))
		require.NoError(t, store.Renew(ctx, "sid-1", time.Minute))

		time.Sleep(60 * time.Millisecond)

		_, err := store.Get(ctx, "sid-1")
		assert.NoError(t, err)
	})

	t.Run("zero ttl clears expiry", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "sid-2", sessionForUser("user-1"), 50*time.Millisecond))
		require.NoError(t, store.Renew(ctx, "sid-2", 0))

		time.Sleep(60 * time.Millisecond)

		_, err := store.Get(ctx, "sid-2")
		assert.NoError(t, err)
	})

	t.Run("missing session", func(t *testing.T) {
		err := store.Renew(ctx, "nope", time.Minute)
		assert.Equal(t, users.ErrUnableToFindSession, err)
	})
}

func TestMemorySessionStoreDelete(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), time.Minute))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	_, err := store.Get(ctx, "sid-1")
	assert.Equal(t, users.ErrUnableToFindSession, err)

	// deleting a missing session is not an error
	assert.NoError(t, store.Delete(ctx, "sid-1"))
}

func TestMemorySessionStoreDeleteAllForUser(t *testing.T) {
	store := users.NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", sessionForUser("user-1"), time.Minute))
	require.NoError(t, store.Save(ctx, "sid-2", sessionForUser("user-1"), time.Minute))
	require.NoError(t, store.Save(ctx, "sid-3", sessionForUser("user-2"), time.Minute))

	require.NoError(t, store.DeleteAllForUser(ctx, "user-1"))

	_, err := store.Get(ctx, "sid-1")
	assert.Equal(t, users.ErrUnableToFindSession, err)
	_, err = store.Get(ctx, "sid-2")
	assert.Equal(t, users.ErrUnableToFindSession, err)

	got, err := store.Get(ctx, "sid-3")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.GetUserID())

	// empty user id is a no-op
	assert.NoError(t, store.DeleteAllForUser(ctx, ""))
}
