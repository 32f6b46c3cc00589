package users

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface using
// the TokenService so WebSocket upgrades authenticate with the same tokens
// HTTP requests carry.
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims interface.
// The router interface predates role lists, so the single role and resource
// permission methods are answered from the roles and scopes the token carries.
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// Role returns the first role name the token carries, empty when it has none.
func (w *WSAuthClaimsAdapter) Role() string {
	if roles := w.claims.Roles(); len(roles) > 0 {
		return roles[0]
	}
	return ""
}

// CanRead checks if the user can read a specific resource
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.can(resource, "read")
}

// CanEdit checks if the user can edit a specific resource
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.can(resource, "edit")
}

// CanCreate checks if the user can create a specific resource
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.can(resource, "create")
}

// CanDelete checks if the user can delete a specific resource
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.can(resource, "delete")
}

// can answers resource permission checks from token scopes. Administrators
// pass every check, other identities need a resource scoped grant in the
// form resource:action.
func (w *WSAuthClaimsAdapter) can(resource, action string) bool {
	if w.claims.HasScope(resource + ":" + action) {
		return true
	}
	return w.claims.HasRole(RoleAdministrator)
}

// HasRole checks if the user has a specific role
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

// IsAtLeast checks if the user's role satisfies the minimum required role.
// Role names carry no ordering here, administrators satisfy every minimum
// and everyone else needs exact membership.
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	if w.claims.HasRole(minRole) {
		return true
	}
	return w.claims.HasRole(RoleAdministrator)
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication
// middleware backed by the authenticator's TokenService.
func (a *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(a.tokenService)

	// Use provided config or create default
	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	// Always set our token validator
	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext is a convenience function to retrieve auth claims
// from WebSocket context. It returns the underlying AuthClaims so callers get
// the full roles and scopes surface instead of the router adapter.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
