// Package middleware provides fiber middleware for the v1 API
package middleware

import (
	"crypto/subtle"
	"strings"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/pkg/types"
)

// RequireInternalAuth ensures internal endpoints are called with the trigger
// token. An empty token disables the check.
func RequireInternalAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrUnauthorized("missing authorization header"))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrUnauthorized("invalid authorization header"))
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrUnauthorized("invalid authorization token"))
		}
		return c.Next()
	}
}
