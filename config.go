package users

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// TextCodeSessionStoreRequired is returned when the session strategy is
// selected without wiring a session store.
const TextCodeSessionStoreRequired = "SESSION_STORE_REQUIRED"

// SimpleConfig is a plain struct implementation of Config. Applications that
// load configuration through their own machinery only need to satisfy the
// Config interface, this type covers everyone else.
type SimpleConfig struct {
	AuthStrategy          AuthStrategy `json:"auth_strategy"`
	SigningKey            string       `json:"signing_key"`
	SigningMethod         string       `json:"signing_method"`
	ContextKey            string       `json:"context_key"`
	TokenExpiration       int          `json:"token_expiration"`
	ExtendedTokenDuration int          `json:"extended_token_duration"`
	TokenLookup           string       `json:"token_lookup"`
	AuthScheme            string       `json:"auth_scheme"`
	Issuer                string       `json:"issuer"`
	Audience              []string     `json:"audience"`
	AuthExcludePaths      []string     `json:"auth_exclude_paths"`
	SessionCookieName     string       `json:"session_cookie_name"`
	SessionStore          SessionStore `json:"-"`
	RejectedRouteKey      string       `json:"rejected_route_key"`
	RejectedRouteDefault  string       `json:"rejected_route_default"`
}

// Verify interface compliance
var _ Config = (*SimpleConfig)(nil)

// NewSimpleConfig creates a config with the given signing key and defaults
// suitable for the JWT strategy.
func NewSimpleConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		AuthStrategy:          StrategyJWT,
		SigningKey:            signingKey,
		SigningMethod:         "HS256",
		ContextKey:            "user",
		TokenExpiration:       24,
		ExtendedTokenDuration: 72,
		TokenLookup:           "header:Authorization,cookie:user",
		AuthScheme:            "Bearer",
		SessionCookieName:     "session",
		RejectedRouteKey:      "rejected_route",
		RejectedRouteDefault:  "/",
	}
}

// Validate checks field constraints plus the cross field rule that the
// session strategy needs a configured session store.
func (c *SimpleConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.AuthStrategy, validation.Required, validation.In(StrategyJWT, StrategySession)),
		validation.Field(&c.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&c.TokenExpiration, validation.Min(1)),
	)
	if err != nil {
		return err
	}

	if c.AuthStrategy == StrategySession && c.SessionStore == nil {
		return goerrors.New("session auth strategy requires a session store", goerrors.CategoryValidation).
			WithTextCode(TextCodeSessionStoreRequired).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

func (c *SimpleConfig) GetAuthStrategy() AuthStrategy {
	if c.AuthStrategy == "" {
		return StrategyJWT
	}
	return c.AuthStrategy
}

func (c *SimpleConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *SimpleConfig) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *SimpleConfig) GetExtendedTokenDuration() int {
	return c.ExtendedTokenDuration
}

func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization,cookie:" + c.GetContextKey()
	}
	return c.TokenLookup
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *SimpleConfig) GetIssuer() string {
	return c.Issuer
}

func (c *SimpleConfig) GetAudience() []string {
	return c.Audience
}

func (c *SimpleConfig) GetAuthExcludePaths() []string {
	return c.AuthExcludePaths
}

func (c *SimpleConfig) GetSessionCookieName() string {
	if c.SessionCookieName == "" {
		return "session"
	}
	return c.SessionCookieName
}

func (c *SimpleConfig) GetSessionStore() SessionStore {
	return c.SessionStore
}

func (c *SimpleConfig) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c *SimpleConfig) GetRejectedRouteDefault() string {
	if c.RejectedRouteDefault == "" {
		return "/"
	}
	return c.RejectedRouteDefault
}
