// clan-progression-service/handlers/member.go
package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"clan-progression-service/cache"
	"clan-progression-service/middleware"
	"clan-progression-service/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func SetupMemberRoutes(app *fiber.App, members *services.MemberService, syncer *services.SyncService, board *cache.Leaderboard, feed *services.EventFeedService, logger *slog.Logger) {
	// 🔓 Public routes — no user context, but still require Gateway auth
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil || limit <= 0 || limit > 100 {
			limit = 10
		}
		entries, err := board.Top(c.Context(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(entries)
	})

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware(logger))

	secured.Post("/members", func(c *fiber.Ctx) error {
		type Req struct {
			ExternalAccount string `json:"external_account" validate:"required,max=64"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		userID := c.Locals("user_id").(string)
		member, err := members.LinkAccount(c.Context(), userID, req.ExternalAccount)
		if err != nil {
			return respondServiceError(c, logger, err)
		}

		// Pull platform truth right away so the fresh link starts consistent.
		if _, err := syncer.Sync(c.Context(), member.ExternalID); err != nil {
			logger.Warn("post-link sync failed", "member", member.ExternalID, "error", err)
		}

		profile, err := members.Profile(c.Context(), member.ExternalID)
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(profile)
	})

	secured.Get("/members/me", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if _, err := members.EnsureMember(c.Context(), userID); err != nil {
			return respondServiceError(c, logger, err)
		}

		// On-demand sync; show the stale rank when the platform is down.
		if _, err := syncer.Sync(c.Context(), userID); err != nil {
			logger.Warn("on-demand sync failed, serving stale rank", "member", userID, "error", err)
		}

		profile, err := members.Profile(c.Context(), userID)
		if err != nil {
			return respondServiceError(c, logger, err)
		}

		position, err := board.RankOf(c.Context(), userID)
		if err != nil {
			logger.Warn("standings lookup failed", "member", userID, "error", err)
		}
		return c.JSON(fiber.Map{
			"member":         profile.Member,
			"rank":           profile.Rank,
			"next_rank":      profile.NextRank,
			"points_to_next": profile.PointsToNext,
			"at_ceiling":     profile.AtCeiling,
			"position":       position,
		})
	})

	// Activity feed for dashboards
	secured.Get("/events", feed.RecentEvents)
	app.Get("/events/stream", middleware.SSEAuthMiddleware(logger), feed.StreamEvents)
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	switch {
	case services.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrSubmissionNotFound),
		errors.Is(err, services.ErrRankNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAccountTaken),
		errors.Is(err, services.ErrAlreadyFinal),
		errors.Is(err, services.ErrNotLinked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	var deficit *services.PointsDeficitError
	if errors.As(err, &deficit) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    deficit.Error(),
			"rank":     deficit.RankName,
			"required": deficit.Required,
			"points":   deficit.Points,
			"deficit":  deficit.Deficit(),
		})
	}
	if services.IsRateLimited(err) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "group platform rate limited the request"})
	}
	var external *services.ExternalServiceError
	if errors.As(err, &external) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream service failed", "cause": external.Error()})
	}

	logger.Error("unhandled service error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "cause": err.Error()})
}
