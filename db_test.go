package users_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var testDBSeq atomic.Int64

// newTestDB opens an in-memory sqlite database and applies the bundled
// migration. Each call gets its own database so tests stay independent.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"),
		testDBSeq.Add(1),
	)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// A shared cache in-memory database is dropped when its last connection
	// closes, pin a single connection so the schema survives the whole test.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	migration, err := users.GetMigrationsFS().ReadFile(
		"data/sql/migrations/sqlite/20250110120000_create_users_tables.up.sql",
	)
	require.NoError(t, err)

	_, err = db.ExecContext(context.Background(), string(migration))
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) users.RepositoryManager {
	t.Helper()
	return users.NewRepositoryManager(newTestDB(t))
}

// seedTestUser creates an active, verified account whose password is
// testUserPassword and whose username is the email local part.
func seedTestUser(t *testing.T, repo users.RepositoryManager, email string) *users.User {
	t.Helper()

	local, _, ok := strings.Cut(email, "@")
	require.True(t, ok, "seedTestUser expects a full email address")

	user, err := repo.Users().Create(context.Background(), &users.User{
		FirstName:    "Pepe",
		LastName:     "Rone",
		Username:     local,
		Email:        email,
		PasswordHash: passwordHashForTests(t),
		IsActive:     true,
		IsVerified:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	return user
}

// requireTextCode asserts the error is a structured error carrying the given
// text code. Repositories return cloned sentinels with call metadata, matching
// on the text code is what API consumers are expected to do.
func requireTextCode(t *testing.T, err error, code string) {
	t.Helper()

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a structured error, got %T: %v", err, err)
	require.Equal(t, code, richErr.TextCode)
}
