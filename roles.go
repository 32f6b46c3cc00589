package users

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RoleAdministrator is the role name management routes accept by default.
// Deployments that use a different admin role can override it when they
// register routes or build guards.
const RoleAdministrator = "administrator"

// RoleMatch selects how a guard combines multiple role names.
type RoleMatch int

const (
	// MatchAny passes requests whose identity carries at least one of the roles.
	MatchAny RoleMatch = iota
	// MatchAll passes requests whose identity carries every one of the roles.
	MatchAll
)

// RoleGuardConfig configures the role guard middleware.
type RoleGuardConfig struct {
	// ContextKey is the locals key the auth middleware stored the identity
	// under. Empty falls back to the JWT middleware default.
	ContextKey string
	Match      RoleMatch
	// ErrorHandler renders denials. The default answers JSON, 401 when the
	// request carries no identity and 403 when roles are missing.
	ErrorHandler func(ctx router.Context, err error) error
}

// RolesAccepted returns middleware that passes requests carrying at least
// one of the given roles.
func RolesAccepted(roles ...string) router.MiddlewareFunc {
	return RoleGuard(RoleGuardConfig{Match: MatchAny}, roles...)
}

// RolesRequired returns middleware that passes requests carrying every one
// of the given roles.
func RolesRequired(roles ...string) router.MiddlewareFunc {
	return RoleGuard(RoleGuardConfig{Match: MatchAll}, roles...)
}

// RoleGuard builds role checking middleware. Identity resolution mirrors
// HasRoleFromRouter, claims stored by the JWT middleware take precedence and
// sessions are consulted when they can answer role checks.
func RoleGuard(cfg RoleGuardConfig, roles ...string) router.MiddlewareFunc {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultRoleGuardError
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if err := checkRouterRoles(ctx, cfg.ContextKey, cfg.Match, roles); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}
			return next(ctx)
		}
	}
}

func checkRouterRoles(ctx router.Context, key string, match RoleMatch, roles []string) error {
	claims, hasClaims := GetRouterClaims(ctx, key)
	session, hasSession := GetRouterSession(ctx, key)

	if !hasClaims && !hasSession {
		return ErrAuthRequired
	}

	// a guard declared with no roles denies rather than silently passing
	if len(roles) == 0 {
		return ErrInsufficientRole
	}

	hasRole := func(role string) bool {
		if hasClaims && claims.HasRole(role) {
			return true
		}
		if hasSession {
			if capable, ok := session.(RoleCapableSession); ok {
				return capable.HasRole(role)
			}
		}
		return false
	}

	switch match {
	case MatchAll:
		for _, role := range roles {
			if !hasRole(role) {
				return ErrInsufficientRole.Clone().WithMetadata(map[string]any{
					"missing_role": role,
				})
			}
		}
		return nil
	default:
		for _, role := range roles {
			if hasRole(role) {
				return nil
			}
		}
		return ErrInsufficientRole.Clone().WithMetadata(map[string]any{
			"accepted_roles": roles,
		})
	}
}

func defaultRoleGuardError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuthz, "Authorization check failed").
			WithCode(errors.CodeForbidden)
	}

	return ctx.JSON(richErr.Code, map[string]string{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
