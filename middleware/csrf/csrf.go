package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required for stateless mode")
)

// DefaultTokenLength is the number of random bytes minted per token.
const DefaultTokenLength = 32

// DefaultTemplateHelpersKey is the context key helper maps are merged under.
const DefaultTemplateHelpersKey = "template_helpers"

// DefaultContextKey is the context key the issued token is stored under.
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the form field checked for the token.
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the request header checked for the token.
const DefaultHeaderName = "X-CSRF-Token"

// TemplateHelperFactory lets template engines defer helper evaluation until
// render time. When registered, CSRFTemplateHelpers hands each helper name and
// its static fallback to the factory so callers can return closures instead.
type TemplateHelperFactory func(name string, fallback string) any

var (
	helperFactoryMu sync.RWMutex
	helperFactory   TemplateHelperFactory
)

// SetTemplateHelperFactory registers the factory used to build CSRF template
// helpers. A nil factory restores the static placeholder strings.
func SetTemplateHelperFactory(factory TemplateHelperFactory) {
	helperFactoryMu.Lock()
	defer helperFactoryMu.Unlock()
	helperFactory = factory
}

func currentHelperFactory() TemplateHelperFactory {
	helperFactoryMu.RLock()
	defer helperFactoryMu.RUnlock()
	return helperFactory
}

// Config defines the CSRF middleware behavior.
type Config struct {
	// Skip bypasses the middleware for requests where it returns true.
	Skip func(router.Context) bool

	// TokenLength is the number of random bytes per token.
	TokenLength int

	// ContextKey is where the issued token is stored in request locals.
	ContextKey string

	// FormFieldName is the form field checked for the submitted token.
	FormFieldName string

	// HeaderName is the header checked for the submitted token.
	HeaderName string

	// TokenLookup lists the places to check for a submitted token,
	// e.g. "form:_token,header:X-CSRF-Token".
	TokenLookup string

	// Storage keeps issued tokens server side. When nil tokens are
	// self-contained HMAC values signed with SecureKey.
	Storage Storage

	// ErrorHandler is invoked when validation fails.
	ErrorHandler router.ErrorHandler

	// SuccessHandler is invoked once the request clears validation.
	SuccessHandler router.HandlerFunc

	// SafeMethods are HTTP methods that skip token validation.
	SafeMethods []string

	// Expiration bounds how long an issued token stays valid.
	Expiration time.Duration

	// SecureKey signs stateless tokens. Must be at least 32 bytes.
	SecureKey []byte

	// DisableTemplateHelpers skips the automatic helper injection.
	DisableTemplateHelpers bool
	// TemplateHelpersKey overrides where the helper map is merged.
	TemplateHelpersKey string
}

// Storage persists issued tokens when running in stateful mode.
type Storage interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

// TokenExtractor pulls a submitted token out of the request.
type TokenExtractor func(router.Context) (string, error)

// New creates the CSRF middleware. Safe methods get a token issued into the
// request locals, everything else must echo that token back through a form
// field or header.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := withDefaults(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := issueToken(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
			if !cfg.DisableTemplateHelpers {
				ctx.LocalsMerge(cfg.TemplateHelpersKey, CSRFTemplateHelpersWithRouter(ctx, cfg.ContextKey))
			}

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return cfg.SuccessHandler(ctx)
			}

			if err := checkToken(ctx, cfg, token); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func issueToken(ctx router.Context, cfg Config) (string, error) {
	if cfg.Storage == nil {
		return mintSignedToken(ctx, cfg)
	}

	// stateful mode keeps one token per session, reuse it when present so
	// multiple tabs share the same value
	key := bindingKey(ctx)
	if token, err := cfg.Storage.Get(key); err == nil && token != "" {
		return token, nil
	}

	token, err := randomToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}

	if err := cfg.Storage.Set(key, token, cfg.Expiration); err != nil {
		return "", err
	}

	return token, nil
}

func checkToken(ctx router.Context, cfg Config, issued string) error {
	received, err := submittedToken(ctx, cfg)
	if err != nil {
		return err
	}

	if received == "" {
		return ErrTokenMissing
	}

	if cfg.Storage == nil {
		return verifySignedToken(ctx, cfg, received)
	}

	if issued == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(issued)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

func randomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// mintSignedToken builds a self-contained token: issue timestamp, a random
// nonce and the request binding key, signed with the configured secure key.
func mintSignedToken(ctx router.Context, cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := strings.Join([]string{
		strconv.FormatInt(time.Now().UTC().Unix(), 10),
		base64.RawURLEncoding.EncodeToString(nonce),
		bindingKey(ctx),
	}, ":")

	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig)), nil
}

func verifySignedToken(ctx router.Context, cfg Config, token string) error {
	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	issuedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return ErrTokenMismatch
	}

	payload := strings.Join(parts[:3], ":")
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrTokenMismatch
	}

	// the token is only good for the session/user/IP it was issued to
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(bindingKey(ctx))) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		if time.Now().UTC().After(time.Unix(issuedAt, 0).Add(cfg.Expiration)) {
			return ErrTokenExpired
		}
	}

	return nil
}

func submittedToken(ctx router.Context, cfg Config) (string, error) {
	for _, extractor := range buildExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName) {
		token, err := extractor(ctx)
		if token != "" && err == nil {
			return token, nil
		}
	}

	return "", nil
}

// bindingKey ties a token to the requester: the session when one exists, the
// authenticated user otherwise, falling back to the client IP.
func bindingKey(ctx router.Context) string {
	if raw := ctx.Locals("session_id"); raw != nil {
		if sid, ok := raw.(string); ok && sid != "" {
			return "csrf_" + sid
		}
	}

	if raw := ctx.Locals("user_id"); raw != nil {
		if uid, ok := raw.(string); ok && uid != "" {
			return "csrf_user_" + uid
		}
	}

	return "csrf_ip_" + ctx.IP()
}

func buildExtractors(tokenLookup, formField, header string) []TokenExtractor {
	if tokenLookup == "" {
		return []TokenExtractor{
			formExtractor(formField),
			headerExtractor(header),
		}
	}

	var extractors []TokenExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "form:"):
			extractors = append(extractors, formExtractor(strings.TrimPrefix(part, "form:")))
		case strings.HasPrefix(part, "header:"):
			extractors = append(extractors, headerExtractor(strings.TrimPrefix(part, "header:")))
		}
	}

	return extractors
}

func formExtractor(fieldName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.FormValue(fieldName), nil
	}
}

func headerExtractor(headerName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.GetString(headerName, ""), nil
	}
}

func withDefaults(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = errorResponder
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}

	cfg.SecureKey = resolveSecureKey(cfg.SecureKey, cfg.Storage)

	return cfg
}

func errorResponder(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case ErrTokenExpired:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
	case ErrSecureKeyMissing:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF configuration error")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

// resolveSecureKey enforces a usable signing key in stateless mode. A short
// key weakens every token minted with it, refuse to run rather than degrade.
func resolveSecureKey(current []byte, storage Storage) []byte {
	if storage != nil {
		return current
	}
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}

// CSRFTemplateHelpers returns the CSRF template helpers with placeholder
// values, routed through the registered factory when one is set.
func CSRFTemplateHelpers() map[string]any {
	base := map[string]string{
		"csrf_token":       "",
		"csrf_field":       `<input type="hidden" name="` + DefaultFormFieldName + `" value="">`,
		"csrf_meta":        `<meta name="csrf-token" content="">`,
		"csrf_header_name": DefaultHeaderName,
	}

	result := make(map[string]any, len(base))
	if factory := currentHelperFactory(); factory != nil {
		for key, value := range base {
			result[key] = factory(key, value)
		}
		return result
	}

	for key, value := range base {
		result[key] = value
	}

	return result
}

// CSRFTemplateHelpersWithRouter builds the CSRF template helpers from the
// token the middleware stored on the request.
func CSRFTemplateHelpersWithRouter(ctx router.Context, tokenKey string) map[string]any {
	if tokenKey == "" {
		tokenKey = DefaultContextKey
	}

	token := ""
	if value := ctx.Locals(tokenKey); value != nil {
		if str, ok := value.(string); ok {
			token = str
		}
	}

	fieldName := DefaultFormFieldName
	if raw := ctx.Locals(tokenKey + "_field"); raw != nil {
		if val, ok := raw.(string); ok && val != "" {
			fieldName = val
		}
	}

	headerName := DefaultHeaderName
	if raw := ctx.Locals(tokenKey + "_header"); raw != nil {
		if val, ok := raw.(string); ok && val != "" {
			headerName = val
		}
	}

	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": headerName,
	}
}
