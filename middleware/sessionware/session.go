package sessionware

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/goliatone/go-router"
)

var ErrSessionMissing = errors.New("missing session cookie")

// Session is the minimal session surface the middleware needs. It mirrors
// the Session interface from the users package to avoid import cycles, the
// concrete value stored in locals is whatever the Store returns.
type Session interface {
	GetUserID() string
}

// Store loads and renews sessions referenced by the request cookie.
type Store interface {
	Get(ctx context.Context, sid string) (Session, error)
	Renew(ctx context.Context, sid string, ttl time.Duration) error
}

// ValidationListener is invoked after a session has been loaded but before the request proceeds.
type ValidationListener func(ctx router.Context, session Session) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	// Store is required, it resolves session ids to sessions
	Store Store
	// CookieName is the cookie carrying the session id
	CookieName string
	// ContextKey is the locals key the session is stored under
	ContextKey string
	// RenewTTL extends the session lifetime on every authenticated request
	// when set, producing sliding sessions
	RenewTTL time.Duration

	// ContextEnricher is an optional function to propagate the session to the
	// standard Go context. If provided, it will be called after the session loads.
	ContextEnricher func(c context.Context, session Session) context.Context

	// ValidationListeners are invoked after the session loads. Use them to emit
	// events or perform bookkeeping before the request proceeds.
	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			sid := ctx.Cookies(cfg.CookieName)
			if sid == "" {
				return cfg.ErrorHandler(ctx, ErrSessionMissing)
			}

			session, err := cfg.Store.Get(ctx.Context(), sid)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := cfg.runValidationListeners(ctx, session); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.RenewTTL > 0 {
				// renewal is best effort, the session was just loaded
				if err := cfg.Store.Renew(ctx.Context(), sid, cfg.RenewTTL); err != nil {
					log.Printf("failed to renew session: %s", err)
				}
			}

			ctx.Locals(cfg.ContextKey, session)

			// if a context enricher we use it to propagate the session to the standard context
			if cfg.ContextEnricher != nil {
				stdCtx := ctx.Context()
				stdCtxWithSession := cfg.ContextEnricher(stdCtx, session)
				ctx.SetContext(stdCtxWithSession)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrSessionMissing) {
				return c.Status(router.StatusUnauthorized).SendString(ErrSessionMissing.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired session")
		}
	}

	if cfg.Store == nil {
		panic("USERS: session middleware configuration: Store is required.")
	}

	if cfg.CookieName == "" {
		cfg.CookieName = "session_id"
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	return cfg
}

func (cfg *Config) runValidationListeners(ctx router.Context, session Session) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, session); err != nil {
			return err
		}
	}
	return nil
}
