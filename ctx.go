package users

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext extracts the Session from the standard context
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// GetRouterSession extracts the Session from the router context. Both the
// session middleware and the JWT route guard store one under the config
// context key.
func GetRouterSession(ctx router.Context, key string) (Session, bool) {
	if key == "" {
		key = "user"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(Session)
	return session, ok
}

// HasRole checks role membership directly from the standard context.
// Claims take precedence, then the stored session.
func HasRole(ctx context.Context, role string) bool {
	if claims, ok := GetClaims(ctx); ok {
		return claims.HasRole(role)
	}

	if session, ok := SessionFromContext(ctx); ok {
		if capable, ok := session.(RoleCapableSession); ok {
			return capable.HasRole(role)
		}
	}

	return false
}

// HasAnyRole reports whether the context carries at least one of the roles.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	for _, role := range roles {
		if HasRole(ctx, role) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the context carries every one of the roles.
func HasAllRoles(ctx context.Context, roles ...string) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !HasRole(ctx, role) {
			return false
		}
	}
	return true
}

// HasRoleFromRouter checks role membership directly from the router context
func HasRoleFromRouter(ctx router.Context, role string) bool {
	if claims, ok := GetRouterClaims(ctx, ""); ok {
		return claims.HasRole(role)
	}

	if session, ok := GetRouterSession(ctx, ""); ok {
		if capable, ok := session.(RoleCapableSession); ok {
			return capable.HasRole(role)
		}
	}

	return false
}
