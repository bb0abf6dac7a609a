package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clan-progression-service/models"
	"clan-progression-service/repository"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Award bounds per approval, per participant.
const (
	MinAwardPoints = 1
	MaxAwardPoints = 30
)

type CreateSubmissionRequest struct {
	EventType      string    `json:"event_type" validate:"required,max=32"`
	ParticipantIDs []string  `json:"participant_ids" validate:"required,min=1,dive,required"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required"`
	ProofReference string    `json:"proof_reference"`
}

// SubmissionService owns the review workflow: pending reports move to
// approved or declined exactly once, and only approval moves points.
type SubmissionService struct {
	Repo     repository.Repository
	Promoter *PromotionService
	Board    ScoreBoard
	Notify   Notifier
	Log      *slog.Logger
}

func NewSubmissionService(repo repository.Repository, promoter *PromotionService, board ScoreBoard, notify Notifier, log *slog.Logger) *SubmissionService {
	return &SubmissionService{
		Repo:     repo,
		Promoter: promoter,
		Board:    board,
		Notify:   notify,
		Log:      log,
	}
}

// Create files an event report for review. The submitter must be registered;
// participants are only checked at approval time, so a report can name
// members who register later.
func (s *SubmissionService) Create(ctx context.Context, submitterID string, req CreateSubmissionRequest) (*models.Submission, error) {
	if _, err := s.Repo.GetMember(ctx, submitterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		return nil, ValidationError{Field: "event_type", Message: "is required"}
	}
	participants := dedupeIDs(req.ParticipantIDs)
	if len(participants) == 0 {
		return nil, ValidationError{Field: "participant_ids", Message: "at least one participant is required"}
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, ValidationError{Field: "end_time", Message: "must be after start_time"}
	}

	sub := &models.Submission{
		SubmitterID:    submitterID,
		EventType:      eventType,
		ParticipantIDs: participants,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		ProofReference: req.ProofReference,
		Status:         models.SubmissionPending,
	}
	if err := s.Repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	s.Log.Info("📥 submission received", "id", sub.ID, "type", sub.EventType, "submitter", submitterID, "participants", len(participants))
	if s.Notify != nil {
		if err := s.Notify.SubmissionFiled(ctx, sub); err != nil {
			s.Log.Warn("review hand-off failed, still listed in pending queue", "id", sub.ID, "error", err)
		}
	}
	return sub, nil
}

// Approve finalizes a pending submission and credits every registered
// participant, auto-promoting whoever the new total qualifies. Approving an
// already approved submission is a no-op; a declined one stays declined. One
// participant's failure never blocks the rest.
func (s *SubmissionService) Approve(ctx context.Context, id uint, reviewerID string, points int) (models.ApprovalResult, error) {
	if points < MinAwardPoints || points > MaxAwardPoints {
		return models.ApprovalResult{}, ValidationError{
			Field:   "points",
			Message: fmt.Sprintf("must be between %d and %d", MinAwardPoints, MaxAwardPoints),
		}
	}

	sub, err := s.Repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ApprovalResult{}, ErrSubmissionNotFound
		}
		return models.ApprovalResult{}, err
	}

	switch sub.Status {
	case models.SubmissionApproved:
		awarded := 0
		if sub.PointsAwarded != nil {
			awarded = *sub.PointsAwarded
		}
		return models.ApprovalResult{SubmissionID: sub.ID, PointsAwarded: awarded, AlreadyFinal: true}, nil
	case models.SubmissionDeclined:
		return models.ApprovalResult{}, ErrAlreadyFinal
	}

	// The status flips before any credit lands, so a repeated approve can
	// never pay participants twice.
	sub.Status = models.SubmissionApproved
	sub.PointsAwarded = &points
	sub.ReviewerID = &reviewerID
	if err := s.Repo.SaveSubmission(ctx, sub); err != nil {
		return models.ApprovalResult{}, err
	}

	result := models.ApprovalResult{SubmissionID: sub.ID, PointsAwarded: points}
	for _, pid := range sub.ParticipantIDs {
		result.Participants = append(result.Participants, s.credit(ctx, pid, points))
	}

	s.Log.Info("✅ submission approved", "id", sub.ID, "reviewer", reviewerID, "points", points, "participants", len(result.Participants))
	if s.Notify != nil {
		if err := s.Notify.SubmissionResolved(ctx, sub, result); err != nil {
			s.Log.Warn("approval notice failed", "id", sub.ID, "error", err)
		}
	}
	return result, nil
}

func (s *SubmissionService) credit(ctx context.Context, memberID string, points int) models.ParticipantOutcome {
	out := models.ParticipantOutcome{MemberID: memberID}

	member, err := s.Repo.AdjustPoints(ctx, memberID, points)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out.Reason = "not registered"
		} else {
			out.Reason = err.Error()
			s.Log.Error("❌ participant credit failed", "member", memberID, "error", err)
		}
		return out
	}
	out.Credited = true
	out.Points = member.Points

	if s.Board != nil {
		if berr := s.Board.SetScore(ctx, memberID, member.Points); berr != nil {
			s.Log.Warn("leaderboard update failed", "member", memberID, "error", berr)
		}
	}

	steps, err := s.Promoter.AutoPromote(ctx, memberID)
	if err != nil {
		out.Reason = fmt.Sprintf("auto-promotion failed: %v", err)
		s.Log.Error("❌ auto-promotion failed", "member", memberID, "error", err)
		return out
	}
	if len(steps) > 0 {
		out.Promoted = true
		if last := steps[len(steps)-1]; !last.Complete() {
			out.Reason = last.Reason
		}
	}
	return out
}

// Decline finalizes a pending submission without crediting anyone. Declining
// twice is a no-op; an approved submission stays approved.
func (s *SubmissionService) Decline(ctx context.Context, id uint, reviewerID string) (*models.Submission, error) {
	sub, err := s.Repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	switch sub.Status {
	case models.SubmissionDeclined:
		return sub, nil
	case models.SubmissionApproved:
		return nil, ErrAlreadyFinal
	}

	sub.Status = models.SubmissionDeclined
	sub.ReviewerID = &reviewerID
	if err := s.Repo.SaveSubmission(ctx, sub); err != nil {
		return nil, err
	}

	s.Log.Info("submission declined", "id", sub.ID, "reviewer", reviewerID)
	return sub, nil
}

// Pending lists submissions awaiting review, oldest first.
func (s *SubmissionService) Pending(ctx context.Context) ([]models.Submission, error) {
	return s.Repo.PendingSubmissions(ctx)
}

func dedupeIDs(ids []string) pq.StringArray {
	seen := make(map[string]bool, len(ids))
	var out pq.StringArray
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
