package csrf

import "github.com/goliatone/go-router"

// RouteConfig controls the token bootstrap endpoint.
type RouteConfig struct {
	// Path the endpoint is registered under.
	Path string
	// ContextKey where the middleware stored the issued token.
	ContextKey string
	// RouteName assigned to the registered route.
	RouteName string
}

const (
	defaultRoutePath = "/csrf"
	defaultRouteName = "auth.csrf.get"
)

// RegisterRoutes adds a GET endpoint that hands SPA clients the current CSRF
// token plus the form field and header names to submit it with. The CSRF
// middleware must run before this route so a token is present on the request.
func RegisterRoutes[T any](app router.Router[T], cfg ...RouteConfig) {
	conf := mergeRouteConfig(cfg...)
	app.Get(conf.Path, tokenEndpoint(conf)).SetName(conf.RouteName)
}

func mergeRouteConfig(cfg ...RouteConfig) RouteConfig {
	conf := RouteConfig{
		Path:       defaultRoutePath,
		ContextKey: DefaultContextKey,
		RouteName:  defaultRouteName,
	}

	if len(cfg) == 0 {
		return conf
	}

	if cfg[0].Path != "" {
		conf.Path = cfg[0].Path
	}
	if cfg[0].ContextKey != "" {
		conf.ContextKey = cfg[0].ContextKey
	}
	if cfg[0].RouteName != "" {
		conf.RouteName = cfg[0].RouteName
	}

	return conf
}

func tokenEndpoint(cfg RouteConfig) router.HandlerFunc {
	return func(ctx router.Context) error {
		token, _ := ctx.Locals(cfg.ContextKey).(string)
		if token == "" {
			return ctx.JSON(router.StatusUnauthorized, map[string]string{
				"error": ErrTokenMissing.Error(),
			})
		}

		// tokens rotate, never let intermediaries cache this response
		ctx.SetHeader("Cache-Control", "no-store, max-age=0")
		ctx.SetHeader("Pragma", "no-cache")
		ctx.SetHeader("Expires", "0")

		fieldName := DefaultFormFieldName
		if v, ok := ctx.Locals(cfg.ContextKey + "_field").(string); ok && v != "" {
			fieldName = v
		}

		headerName := DefaultHeaderName
		if v, ok := ctx.Locals(cfg.ContextKey + "_header").(string); ok && v != "" {
			headerName = v
		}

		return ctx.JSON(router.StatusOK, map[string]string{
			"token":       token,
			"field_name":  fieldName,
			"header_name": headerName,
		})
	}
}
