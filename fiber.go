package users

import (
	"github.com/gofiber/fiber/v2"
)

// GetFiberSession reads the authenticated session straight from fiber locals
// for handlers written against the raw fiber API instead of go-router. The
// route guard stores either a Session or AuthClaims under the config context
// key, both shapes resolve to a Session here.
func GetFiberSession(c *fiber.Ctx, key string) (Session, error) {
	if key == "" {
		key = "user"
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	switch v := raw.(type) {
	case Session:
		return v, nil
	case AuthClaims:
		return sessionFromAuthClaims(v)
	}

	return nil, ErrUnableToDecodeSession
}

// GetFiberClaims reads AuthClaims from fiber locals. Sessions stored by the
// session strategy do not carry claims, use GetFiberSession for those.
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user"
	}

	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok
}
