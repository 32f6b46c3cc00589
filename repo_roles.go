package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles manages role records and the user role join table.
type Roles interface {
	Get(ctx context.Context, id uuid.UUID) (*Role, error)
	GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Role, error)
	Create(ctx context.Context, role *Role) (*Role, error)
	CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
	GetOrCreate(ctx context.Context, role *Role) (*Role, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
	Update(ctx context.Context, role *Role) (*Role, error)
	UpdateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error
	AssignToUserTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
	RevokeFromUser(ctx context.Context, userID, roleID uuid.UUID) error
	RevokeFromUserTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
}

type rolesRepo struct {
	db *bun.DB
}

var _ Roles = (*rolesRepo)(nil)

// NewRolesRepository creates a role repository backed by bun.
func NewRolesRepository(db *bun.DB) Roles {
	return &rolesRepo{db: db}
}

func (r *rolesRepo) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	return r.GetTx(ctx, r.db, id)
}

func (r *rolesRepo) GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Role, error) {
	role := &Role{}
	err := tx.NewSelect().
		Model(role).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound.Clone().WithMetadata(map[string]any{
				"id": id.String(),
			})
		}
		return nil, err
	}
	return role, nil
}

func (r *rolesRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *rolesRepo) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	role := &Role{}
	err := tx.NewSelect().
		Model(role).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound.Clone().WithMetadata(map[string]any{
				"name": name,
			})
		}
		return nil, err
	}
	return role, nil
}

func (r *rolesRepo) List(ctx context.Context) ([]*Role, error) {
	var roles []*Role
	err := r.db.NewSelect().
		Model(&roles).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *rolesRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Role, error) {
	var roles []*Role
	err := r.db.NewSelect().
		Model(&roles).
		Join("JOIN user_roles AS usrrol ON usrrol.role_id = rol.id").
		Where("usrrol.user_id = ?", userID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *rolesRepo) Create(ctx context.Context, role *Role) (*Role, error) {
	return r.CreateTx(ctx, r.db, role)
}

func (r *rolesRepo) CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	prepareRoleDefaults(role)

	res, err := tx.NewInsert().
		Model(role).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrRoleExists.Clone().WithMetadata(map[string]any{
			"name": role.Name,
		})
	}

	return role, nil
}

func (r *rolesRepo) GetOrCreate(ctx context.Context, role *Role) (*Role, error) {
	return r.GetOrCreateTx(ctx, r.db, role)
}

func (r *rolesRepo) GetOrCreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	existing, err := r.GetByNameTx(ctx, tx, role.Name)
	if err == nil {
		return existing, nil
	}

	if !goerrors.IsNotFound(err) {
		return nil, err
	}

	return r.CreateTx(ctx, tx, role)
}

func (r *rolesRepo) Update(ctx context.Context, role *Role) (*Role, error) {
	return r.UpdateTx(ctx, r.db, role)
}

func (r *rolesRepo) UpdateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	now := time.Now()
	role.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(role).
		Column("name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrRoleNotFound.Clone().WithMetadata(map[string]any{
			"id": role.ID.String(),
		})
	}

	return role, nil
}

func (r *rolesRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DeleteTx(ctx, r.db, id)
}

// DeleteTx removes the role and any assignments pointing at it.
func (r *rolesRepo) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*UserRole)(nil)).
		Where("role_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	res, err := tx.NewDelete().
		Model((*Role)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrRoleNotFound.Clone().WithMetadata(map[string]any{
			"id": id.String(),
		})
	}

	return nil
}

func (r *rolesRepo) AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	return r.AssignToUserTx(ctx, r.db, userID, roleID)
}

func (r *rolesRepo) AssignToUserTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	record := &UserRole{
		UserID: userID,
		RoleID: roleID,
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrRoleAlreadyAssigned.Clone().WithMetadata(map[string]any{
			"user_id": userID.String(),
			"role_id": roleID.String(),
		})
	}

	return nil
}

func (r *rolesRepo) RevokeFromUser(ctx context.Context, userID, roleID uuid.UUID) error {
	return r.RevokeFromUserTx(ctx, r.db, userID, roleID)
}

func (r *rolesRepo) RevokeFromUserTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*UserRole)(nil)).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrRoleNotAssigned.Clone().WithMetadata(map[string]any{
			"user_id": userID.String(),
			"role_id": roleID.String(),
		})
	}

	return nil
}

func prepareRoleDefaults(role *Role) {
	if role == nil {
		return
	}

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}

	role.Name = strings.TrimSpace(role.Name)
}
