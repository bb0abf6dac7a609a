package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"clan-progression-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventFeedService records progression events and streams them to dashboards.
// It is the Notifier the promotion and submission flows announce through.
type EventFeedService struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func NewEventFeedService(db *gorm.DB, log *slog.Logger) *EventFeedService {
	return &EventFeedService{DB: db, Log: log}
}

// Record appends one event to the feed.
func (s *EventFeedService) Record(ctx context.Context, kind models.EventKind, memberID, message string) error {
	event := models.ProgressionEvent{
		ID:       uuid.NewString(),
		Kind:     kind,
		MemberID: memberID,
		Message:  message,
	}
	return s.DB.WithContext(ctx).Create(&event).Error
}

// PromotionAnnounced implements Notifier.
func (s *EventFeedService) PromotionAnnounced(ctx context.Context, memberID string, result models.PromotionResult) error {
	msg := fmt.Sprintf("promoted from rank %d to %d", result.OldRankOrder, result.NewRankOrder)
	return s.Record(ctx, models.EventPromotion, memberID, msg)
}

// DesyncReported implements Notifier.
func (s *EventFeedService) DesyncReported(ctx context.Context, memberID string, result models.PromotionResult) error {
	msg := fmt.Sprintf("promotion to rank %d left stores out of step (ledger=%t grants=%t external=%t): %s",
		result.NewRankOrder, result.LedgerOK, result.GrantOK, result.ExternalOK, result.Reason)
	return s.Record(ctx, models.EventDesync, memberID, msg)
}

// SubmissionFiled implements Notifier. New pending reports land on the feed
// so reviewers watching the stream see them without polling.
func (s *EventFeedService) SubmissionFiled(ctx context.Context, sub *models.Submission) error {
	msg := fmt.Sprintf("%s submission #%d filed with %d participant(s), awaiting review",
		sub.EventType, sub.ID, len(sub.ParticipantIDs))
	return s.Record(ctx, models.EventSubmission, sub.SubmitterID, msg)
}

// SubmissionResolved implements Notifier.
func (s *EventFeedService) SubmissionResolved(ctx context.Context, sub *models.Submission, result models.ApprovalResult) error {
	credited := 0
	for _, p := range result.Participants {
		if p.Credited {
			credited++
		}
	}
	msg := fmt.Sprintf("%s submission #%d approved: %d point(s) to %d participant(s)",
		sub.EventType, sub.ID, result.PointsAwarded, credited)
	return s.Record(ctx, models.EventSubmission, sub.SubmitterID, msg)
}

// RecentEvents returns the latest feed entries, newest first.
// GET /events?limit=50
func (s *EventFeedService) RecentEvents(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	var events []models.ProgressionEvent
	if err := s.DB.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		s.Log.Error("event feed query failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch events"})
	}
	return c.JSON(events)
}

// StreamEvents streams new feed entries in real time over SSE.
// GET /events/stream
func (s *EventFeedService) StreamEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		// Cursor starts at the newest existing event
		var cursor time.Time
		var latest models.ProgressionEvent
		if err := s.DB.Order("created_at DESC").First(&latest).Error; err == nil {
			cursor = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.Log.Error("event stream init failed", "error", err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var fresh []models.ProgressionEvent
				err := s.DB.
					Where("created_at > ?", cursor).
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					s.Log.Error("event stream query failed", "error", err)
					continue
				}
				if len(fresh) == 0 {
					continue
				}

				cursor = fresh[len(fresh)-1].CreatedAt

				for _, e := range fresh {
					payload, _ := json.Marshal(e)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
