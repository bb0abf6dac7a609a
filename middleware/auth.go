// clan-progression-service/middleware/auth.go
package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts member identity and roles set by the Gateway.
// Routes behind it always need an identity, so a missing X-User-ID is a 401.
func UserContextMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		if userID == "" {
			logger.Warn("❌ [USER_CTX] X-User-ID required but missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		logger.Debug("👤 [USER_CTX] request context", "user", userID, "roles", roles, "path", c.Path())
		return c.Next()
	}
}

// RequireRole gates a route group on one gateway-forwarded role.
func RequireRole(role string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		logger.Warn("🚫 [USER_CTX] role check failed", "required", role, "path", c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role for this route",
		})
	}
}
