package users

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Logger is the leveled, structured logging contract used across the package.
// It aliases glog.Logger so embedding applications can pass their loggers
// straight through.
type Logger = glog.Logger

// LoggerProvider resolves named loggers so each component can log under its
// own scope (users.provider, users.token_service, ...).
type LoggerProvider = glog.LoggerProvider

// ResolveLogger returns a provider and the logger registered for the given
// scope. A nil provider is built from the fallback logger; a provider that
// resolves to nil falls back the same way.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if fallback == nil {
		fallback = defaultLogger()
	}

	if provider == nil {
		provider = glog.ProviderFromLogger(fallback)
	}

	logger := provider.GetLogger(name)
	if logger == nil {
		logger = fallback
		provider = glog.ProviderFromLogger(fallback)
	}

	return provider, logger
}

func defaultLogger() Logger {
	base := glog.NewLogger(
		glog.WithName("users"),
		glog.WithLevel(glog.Info),
	)
	return base.GetLogger("users")
}

// LegacyLogger is the printf-style contract earlier integrations exposed.
type LegacyLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// FormattedLogger mirrors loggers that expose Printf-suffixed levels.
type FormattedLogger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FromLegacyLogger adapts a printf-style logger to the Logger contract.
// A nil legacy logger resolves to a safe no-op logger.
func FromLegacyLogger(legacy LegacyLogger) Logger {
	if legacy == nil {
		return noopLogger{}
	}
	return legacyAdapter{legacy: legacy}
}

// FromFormattedLogger adapts a Printf-suffixed logger to the Logger contract.
func FromFormattedLogger(formatted FormattedLogger) Logger {
	if formatted == nil {
		return noopLogger{}
	}
	return formattedAdapter{formatted: formatted}
}

// ToFormattedLogger exposes a Logger through the FormattedLogger contract.
func ToFormattedLogger(logger Logger) FormattedLogger {
	if logger == nil {
		logger = noopLogger{}
	}
	return reverseFormattedAdapter{logger: logger}
}

type legacyAdapter struct {
	legacy LegacyLogger
}

func (l legacyAdapter) Trace(message string, args ...any) { l.legacy.Debug(message, args...) }
func (l legacyAdapter) Debug(message string, args ...any) { l.legacy.Debug(message, args...) }
func (l legacyAdapter) Info(message string, args ...any)  { l.legacy.Info(message, args...) }
func (l legacyAdapter) Warn(message string, args ...any)  { l.legacy.Warn(message, args...) }
func (l legacyAdapter) Error(message string, args ...any) { l.legacy.Error(message, args...) }
func (l legacyAdapter) Fatal(message string, args ...any) { l.legacy.Error(message, args...) }
func (l legacyAdapter) WithContext(context.Context) Logger {
	return l
}

type formattedAdapter struct {
	formatted FormattedLogger
}

func (f formattedAdapter) Trace(message string, args ...any) { f.formatted.Debugf(message, args...) }
func (f formattedAdapter) Debug(message string, args ...any) { f.formatted.Debugf(message, args...) }
func (f formattedAdapter) Info(message string, args ...any)  { f.formatted.Infof(message, args...) }
func (f formattedAdapter) Warn(message string, args ...any)  { f.formatted.Warnf(message, args...) }
func (f formattedAdapter) Error(message string, args ...any) { f.formatted.Errorf(message, args...) }
func (f formattedAdapter) Fatal(message string, args ...any) { f.formatted.Errorf(message, args...) }
func (f formattedAdapter) WithContext(context.Context) Logger {
	return f
}

type reverseFormattedAdapter struct {
	logger Logger
}

func (r reverseFormattedAdapter) Debugf(format string, args ...any) {
	r.logger.Debug(fmt.Sprintf(format, args...))
}

func (r reverseFormattedAdapter) Infof(format string, args ...any) {
	r.logger.Info(fmt.Sprintf(format, args...))
}

func (r reverseFormattedAdapter) Warnf(format string, args ...any) {
	r.logger.Warn(fmt.Sprintf(format, args...))
}

func (r reverseFormattedAdapter) Errorf(format string, args ...any) {
	r.logger.Error(fmt.Sprintf(format, args...))
}

type noopLogger struct{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}
func (noopLogger) WithContext(context.Context) Logger {
	return noopLogger{}
}

// AuthStrategy selects how authenticated requests are recognized.
type AuthStrategy = string

const (
	// StrategyJWT issues signed stateless tokens.
	StrategyJWT AuthStrategy = "jwt"
	// StrategySession issues server-side sessions referenced by a cookie.
	StrategySession AuthStrategy = "session"
)

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	Impersonate(ctx context.Context, identifier string) (string, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
	TokenService() TokenService
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	Logout(c router.Context)
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

// Middleware protects routes and exposes impersonation for trusted callers.
type Middleware interface {
	Impersonate(c router.Context, identifier string) error
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// Identity holds the attributes of an authenticated account. Roles carries
// the role names assigned to the account, in no particular order.
type Identity interface {
	ID() string
	Username() string
	Email() string
	Roles() []string
}

// Config holds auth options
type Config interface {
	GetAuthStrategy() AuthStrategy
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetAuthExcludePaths() []string
	GetSessionCookieName() string
	GetSessionStore() SessionStore
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// TokenService issues and validates access tokens.
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
