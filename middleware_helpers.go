package users

import (
	"context"
	"time"

	"github.com/goliatone/go-users/middleware/jwtware"
	"github.com/goliatone/go-users/middleware/sessionware"
)

// ValidationListener aliases the jwtware listener so consumers can use the
// package helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter adapts jwtware.AuthClaims to AuthClaims and stores
// them in the standard context for downstream guard usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	return WithClaimsContext(c, authClaims)
}

// sessionContextEnricher mirrors ContextEnricherAdapter for the session
// strategy so HasRole and friends work from the standard context.
func sessionContextEnricher(c context.Context, session sessionware.Session) context.Context {
	if s, ok := session.(Session); ok {
		return WithSessionContext(c, s)
	}
	return c
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// tokenValidatorAdapter exposes a TokenService through the mirror interface
// jwtware declares to avoid an import cycle.
type tokenValidatorAdapter struct {
	service TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// sessionStoreAdapter exposes a SessionStore through the mirror interface
// sessionware declares to avoid an import cycle.
type sessionStoreAdapter struct {
	store SessionStore
}

func newSessionStoreAdapter(store SessionStore) sessionware.Store {
	if store == nil {
		return nil
	}
	return sessionStoreAdapter{store: store}
}

func (a sessionStoreAdapter) Get(ctx context.Context, sid string) (sessionware.Session, error) {
	session, err := a.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (a sessionStoreAdapter) Renew(ctx context.Context, sid string, ttl time.Duration) error {
	return a.store.Renew(ctx, sid, ttl)
}
