package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle state derived from account flags.
type AccountStatus = string

const (
	// StatusUnverified is a registered account that has not confirmed its email
	StatusUnverified AccountStatus = "unverified"
	// StatusActive is a verified account in good standing
	StatusActive AccountStatus = "active"
	// StatusDeactivated is an account disabled by an administrator
	StatusDeactivated AccountStatus = "deactivated"
	// StatusDeleted is a soft deleted account, terminal
	StatusDeleted AccountStatus = "deleted"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName      string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name,notnull" json:"last_name,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	ProfilePicture string         `bun:"profile_picture" json:"profile_picture,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	IsActive       bool           `bun:"is_active" json:"is_active"`
	IsVerified     bool           `bun:"is_verified" json:"is_verified"`
	Roles          []*Role        `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	VerifiedAt     *time.Time     `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	ResetedAt      *time.Time     `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
// TODO: make a trigger to merge metadata in database!
// https://stackoverflow.com/a/42954907/125083
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]interface{})
	}
	u.Metadata[key] = val
	return u
}

// RoleNames returns the names of the user's assigned roles.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		if role != nil {
			names = append(names, role.Name)
		}
	}
	return names
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role != nil && role.Name == name {
			return true
		}
	}
	return false
}

// CanLogin reports whether the account can authenticate at all, soft deleted
// and deactivated accounts cannot.
func (u *User) CanLogin() bool {
	return u.DeletedAt == nil && u.IsActive
}

// EnsureStatus derives the lifecycle status from the account flags.
func (u *User) EnsureStatus() AccountStatus {
	switch {
	case u.DeletedAt != nil:
		return StatusDeleted
	case !u.IsActive:
		return StatusDeactivated
	case !u.IsVerified:
		return StatusUnverified
	default:
		return StatusActive
	}
}

// UpdateStatus maps a lifecycle status back onto the account flags. The
// caller persists the change, usually through the lifecycle machine.
func (u *User) UpdateStatus(status AccountStatus) {
	switch status {
	case StatusActive:
		u.IsActive = true
		u.IsVerified = true
	case StatusUnverified:
		u.IsActive = true
		u.IsVerified = false
	case StatusDeactivated:
		u.IsActive = false
	case StatusDeleted:
		now := time.Now()
		u.DeletedAt = &now
	}
}

// Role is a named grant that can be attached to any number of users.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserRole joins users and roles.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID  `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role      `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RegisterModels registers the join tables bun needs to resolve many to many
// relations. Call it once per bun.DB before querying user roles.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*UserRole)(nil))
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// constraint behave the same regardless of input casing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
