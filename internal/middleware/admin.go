package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"
)

// NewAdminGuard returns a middleware requiring the shared admin key in the
// X-Admin-Key header. Comparison is constant-time. An empty configured key
// disables the admin surface entirely.
func NewAdminGuard(adminKey string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if adminKey == "" {
			return ErrorResponse(c, fiber.StatusForbidden, "ADMIN_DISABLED",
				"Admin endpoints are disabled")
		}
		got := c.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED",
				"Invalid admin key")
		}
		return c.Next()
	}
}
