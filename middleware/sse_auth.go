// clan-progression-service/middleware/sse_auth.go
package middleware

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates the `token` query param against the service
// token. EventSource cannot set an Authorization header, so the dashboard
// stream authenticates through the query string instead.
//
// Usage:
//
//	app.Get("/events/stream", middleware.SSEAuthMiddleware(logger), feed.StreamEvents)
func SSEAuthMiddleware(logger *slog.Logger) fiber.Handler {
	expectedToken := os.Getenv("PROGRESSION_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ PROGRESSION_SERVICE_TOKEN is not set — service cannot authenticate stream clients")
	}

	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		if token == "" {
			logger.Warn("❌ [SSE_AUTH] missing token query param", "path", c.Path(), "ip", c.IP())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		if token != expectedToken {
			logger.Warn("❌ [SSE_AUTH] invalid token", "path", c.Path(), "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		return c.Next()
	}
}
