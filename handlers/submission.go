// clan-progression-service/handlers/submission.go
package handlers

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clan-progression-service/middleware"
	"clan-progression-service/services"
	"clan-progression-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupSubmissionRoutes(app *fiber.App, subs *services.SubmissionService, logger *slog.Logger) {
	secured := app.Group("/", middleware.UserContextMiddleware(logger))

	// Create an event report. Multipart when a proof image rides along, plain
	// JSON when the proof already lives somewhere.
	secured.Post("/submissions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req services.CreateSubmissionRequest
		if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
			parsed, err := parseSubmissionForm(c)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			req = parsed
		} else if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		sub, err := subs.Create(c.Context(), userID, req)
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	// 🔒 Review queue — officers only
	admin := app.Group("/admin/submissions", middleware.UserContextMiddleware(logger), middleware.RequireRole(officerRole, logger))

	admin.Get("/pending", func(c *fiber.Ctx) error {
		pending, err := subs.Pending(c.Context())
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.JSON(pending)
	})

	admin.Post("/:id/approve", func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid submission id"})
		}

		type Req struct {
			Points int `json:"points" validate:"required,min=1,max=30"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		reviewer := c.Locals("user_id").(string)
		result, err := subs.Approve(c.Context(), uint(id), reviewer, req.Points)
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.JSON(result)
	})

	admin.Post("/:id/decline", func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid submission id"})
		}

		reviewer := c.Locals("user_id").(string)
		sub, err := subs.Decline(c.Context(), uint(id), reviewer)
		if err != nil {
			return respondServiceError(c, logger, err)
		}
		return c.JSON(sub)
	})
}

// parseSubmissionForm reads the multipart variant and stores the proof image,
// R2 when configured, local disk otherwise.
func parseSubmissionForm(c *fiber.Ctx) (services.CreateSubmissionRequest, error) {
	var req services.CreateSubmissionRequest

	req.EventType = c.FormValue("event_type")
	for _, id := range strings.Split(c.FormValue("participant_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			req.ParticipantIDs = append(req.ParticipantIDs, id)
		}
	}

	start, err := time.Parse(time.RFC3339, c.FormValue("start_time"))
	if err != nil {
		return req, fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, c.FormValue("end_time"))
	if err != nil {
		return req, fmt.Errorf("invalid end_time: %w", err)
	}
	req.StartTime, req.EndTime = start, end

	file, err := c.FormFile("proof")
	if err != nil {
		return req, fmt.Errorf("proof image is required")
	}
	key := fmt.Sprintf("proofs/%s%s", uuid.NewString(), filepath.Ext(file.Filename))
	if utils.ProofStoreReady() {
		url, err := utils.UploadProofToR2(file, key)
		if err != nil {
			return req, fmt.Errorf("failed to store proof: %w", err)
		}
		req.ProofReference = url
	} else {
		path, err := utils.SaveProofLocally(file, filepath.Base(key))
		if err != nil {
			return req, fmt.Errorf("failed to store proof: %w", err)
		}
		req.ProofReference = path
	}
	return req, nil
}
