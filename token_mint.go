package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Scoped token purposes. The purpose rides in both the aud claim and the
// scopes claim so either convention can be checked on the way back in.
const (
	// ScopeVerify marks tokens minted for account email verification.
	ScopeVerify = "verify"
	// ScopePasswordReset marks tokens minted for password reset confirmation.
	ScopePasswordReset = "reset_password"
)

// DefaultScopedTokenTTL is how long verification and password reset tokens
// stay valid when no override is given.
const DefaultScopedTokenTTL = 24 * time.Hour

// ScopedTokenOptions controls how MintScopedToken issues short-lived tokens.
type ScopedTokenOptions struct {
	// TTL overrides the default token expiration. Zero uses TokenService defaults.
	TTL time.Duration
	// Issuer overrides the default issuer if provided.
	Issuer string
	// Audience overrides the default audience if provided.
	Audience []string
	// IssuedAt overrides the issuance time. Zero uses time.Now().
	IssuedAt time.Time
	// Scopes sets the optional scopes claim on the minted token.
	Scopes []string
}

type tokenDefaults struct {
	issuer   string
	audience jwt.ClaimStrings
	ttl      time.Duration
}

type tokenDefaultsProvider interface {
	tokenDefaults() tokenDefaults
}

// MintScopedToken mints a short-lived JWT with optional scopes and TTL override.
// It uses TokenService defaults for issuer, audience, and TTL when available.
func MintScopedToken(tokenService TokenService, identity Identity, opts ScopedTokenOptions) (string, time.Time, error) {
	if tokenService == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if identity == nil {
		return "", time.Time{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	issuer := opts.Issuer
	audience := opts.Audience
	ttl := opts.TTL

	if defaultsProvider, ok := tokenService.(tokenDefaultsProvider); ok {
		defaults := defaultsProvider.tokenDefaults()
		if issuer == "" {
			issuer = defaults.issuer
		}
		if len(audience) == 0 {
			audience = defaults.audience
		}
		if ttl == 0 {
			ttl = defaults.ttl
		}
	}

	if ttl < 0 {
		return "", time.Time{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	expiresAt := issuedAt.Add(ttl)

	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		UserRoles: identity.Roles(),
	}

	if len(opts.Scopes) > 0 {
		claims.Scopes = append([]string(nil), opts.Scopes...)
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := tokenService.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// MintVerificationToken mints a token that can only finalize account verification.
func MintVerificationToken(tokenService TokenService, identity Identity, opts ScopedTokenOptions) (string, time.Time, error) {
	return mintPurposeToken(tokenService, identity, ScopeVerify, opts)
}

// MintPasswordResetToken mints a token that can only finalize a password reset.
func MintPasswordResetToken(tokenService TokenService, identity Identity, opts ScopedTokenOptions) (string, time.Time, error) {
	return mintPurposeToken(tokenService, identity, ScopePasswordReset, opts)
}

// mintPurposeToken augments the service audience with the purpose instead of
// replacing it, so tokens still pass the service level audience check.
func mintPurposeToken(tokenService TokenService, identity Identity, purpose string, opts ScopedTokenOptions) (string, time.Time, error) {
	audience := opts.Audience
	if len(audience) == 0 {
		if defaultsProvider, ok := tokenService.(tokenDefaultsProvider); ok {
			audience = defaultsProvider.tokenDefaults().audience
		}
	}

	opts.Audience = appendMissing(audience, purpose)
	opts.Scopes = appendMissing(opts.Scopes, purpose)

	if opts.TTL == 0 {
		opts.TTL = DefaultScopedTokenTTL
	}

	return MintScopedToken(tokenService, identity, opts)
}

// ValidateScopedToken validates the token signature and lifetime, then makes
// sure it was minted for the given purpose. Tokens minted for a different
// purpose fail with ErrTokenAudience.
func ValidateScopedToken(tokenService TokenService, token, purpose string) (AuthClaims, error) {
	if tokenService == nil {
		return nil, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}

	claims, err := tokenService.Validate(token)
	if err != nil {
		return nil, err
	}

	if containsString(claims.Audience(), purpose) || claims.HasScope(purpose) {
		return claims, nil
	}

	return nil, ErrTokenAudience
}

func appendMissing(values []string, value string) []string {
	if containsString(values, value) {
		return values
	}
	out := make([]string, 0, len(values)+1)
	out = append(out, values...)
	return append(out, value)
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
