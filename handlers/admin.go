// clan-progression-service/handlers/admin.go
package handlers

import (
	"errors"
	"log/slog"

	"clan-progression-service/cache"
	"clan-progression-service/middleware"
	"clan-progression-service/models"
	"clan-progression-service/services"

	"github.com/gofiber/fiber/v2"
)

// The gateway forwards roles; officer routes are gated on this one.
const officerRole = "officer"

func SetupAdminRoutes(app *fiber.App, members *services.MemberService, syncer *services.SyncService, promoter *services.PromotionService, table *services.RankTable, board *cache.Leaderboard, logger *slog.Logger) {
	// 🔒 Officer-only routes
	admin := app.Group("/admin", middleware.UserContextMiddleware(logger), middleware.RequireRole(officerRole, logger))

	admin.Get("/members/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")

		outcome, err := syncer.Sync(c.Context(), id)
		if errors.Is(err, services.ErrMemberNotFound) {
			return respondServiceError(c, logger, err)
		}
		if err != nil {
			logger.Warn("on-demand sync failed, serving stale rank", "member", id, "error", err)
		}

		profile, err := members.Profile(c.Context(), id)
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		position, err := board.RankOf(c.Context(), id)
		if err != nil {
			logger.Warn("standings lookup failed", "member", id, "error", err)
		}
		return c.JSON(fiber.Map{
			"member":         profile.Member,
			"rank":           profile.Rank,
			"next_rank":      profile.NextRank,
			"points_to_next": profile.PointsToNext,
			"at_ceiling":     profile.AtCeiling,
			"position":       position,
			"sync":           outcome.Action,
		})
	})

	admin.Post("/members/:id/points", func(c *fiber.Ctx) error {
		type Req struct {
			Points int    `json:"points" validate:"required"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		id := c.Params("id")
		member, promotions, err := members.AddPoints(c.Context(), id, req.Points)
		if err != nil && member == nil {
			return respondServiceError(c, logger, err)
		}

		resp := fiber.Map{
			"message":    "points adjusted",
			"member":     member,
			"promotions": promotions,
		}
		if req.Reason != "" {
			resp["reason"] = req.Reason
		}
		if err != nil {
			// points landed, the auto-promotion after them did not
			resp["promotion_error"] = err.Error()
		}
		return c.JSON(resp)
	})

	admin.Post("/members/:id/promote", func(c *fiber.Ctx) error {
		type Req struct {
			TargetOrder int `json:"target_order"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		id := c.Params("id")
		actor := c.Locals("user_id").(string)
		if actor == id {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "officers cannot promote themselves"})
		}

		var result models.PromotionResult
		var err error
		if req.TargetOrder > 0 {
			result, err = promoter.Promote(c.Context(), id, req.TargetOrder)
		} else {
			result, err = promoter.PromoteNext(c.Context(), id)
		}
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.JSON(fiber.Map{"message": "promotion executed", "result": result})
	})

	admin.Post("/sync", func(c *fiber.Ctx) error {
		report, err := syncer.SyncAll(c.Context())
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.JSON(report)
	})

	admin.Get("/ranks", func(c *fiber.Ctx) error {
		var response []fiber.Map
		for _, r := range table.Ranks() {
			response = append(response, fiber.Map{
				"order":             r.Order,
				"name":              r.Name,
				"points_required":   r.PointsRequired,
				"external_rank_ref": r.ExternalRankRef,
				"admin_only":        r.AdminOnly,
				"grant_key":         services.RoleKey(r),
			})
		}
		return c.JSON(response)
	})
}
