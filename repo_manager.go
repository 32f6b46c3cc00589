package users

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
}

type mngr struct {
	db    *bun.DB
	users Users
	roles Roles
}

type ManagerOption func(*mngr)

// WithManagerUsers overrides the default users repository, e.g. to attach
// lifecycle options.
func WithManagerUsers(users Users) ManagerOption {
	return func(m *mngr) {
		m.users = users
	}
}

// WithManagerRoles overrides the default roles repository.
func WithManagerRoles(roles Roles) ManagerOption {
	return func(m *mngr) {
		m.roles = roles
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db: db,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.users == nil {
		m.users = NewUsersRepository(db)
	}

	if m.roles == nil {
		m.roles = NewRolesRepository(db)
	}

	return m
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}
