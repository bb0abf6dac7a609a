package repository

import (
	"context"

	"clan-progression-service/models"

	"gorm.io/gorm"
)

// Repository is the persistence boundary for the progression ledger.
type Repository interface {
	GetMember(ctx context.Context, externalID string) (*models.Member, error)
	GetMemberByAccount(ctx context.Context, account string) (*models.Member, error)
	CreateMember(ctx context.Context, m *models.Member) error
	UpdateMemberAccount(ctx context.Context, externalID, account string) error
	ListMembers(ctx context.Context) ([]models.Member, error)
	ListLinkedMembers(ctx context.Context) ([]models.Member, error)
	SetMemberRank(ctx context.Context, externalID string, rankOrder int) error
	AdjustPoints(ctx context.Context, externalID string, delta int) (*models.Member, error)
	TopMembers(ctx context.Context, limit int) ([]models.Member, error)

	Ranks(ctx context.Context) ([]models.Rank, error)
	SeedRanks(ctx context.Context, ranks []models.Rank) error

	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id uint) (*models.Submission, error)
	SaveSubmission(ctx context.Context, s *models.Submission) error
	PendingSubmissions(ctx context.Context) ([]models.Submission, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetMember(ctx context.Context, externalID string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) GetMemberByAccount(ctx context.Context, account string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("external_account = ?", account).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) CreateMember(ctx context.Context, m *models.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *gormRepository) UpdateMemberAccount(ctx context.Context, externalID, account string) error {
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("external_id = ?", externalID).
		Update("external_account", account).Error
}

func (r *gormRepository) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).Order("external_id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListLinkedMembers returns every member with a group-platform account, the
// population the bulk sync sweep walks.
func (r *gormRepository) ListLinkedMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).
		Where("external_account IS NOT NULL").
		Order("external_id").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *gormRepository) SetMemberRank(ctx context.Context, externalID string, rankOrder int) error {
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("external_id = ?", externalID).
		Update("rank_order", rankOrder).Error
}

// AdjustPoints applies a signed delta inside a transaction; totals never go
// below zero. Returns the member with the new total.
func (r *gormRepository) AdjustPoints(ctx context.Context, externalID string, delta int) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("external_id = ?", externalID).First(&member).Error; err != nil {
			return err
		}
		member.Points += delta
		if member.Points < 0 {
			member.Points = 0
		}
		return tx.Model(&models.Member{}).
			Where("external_id = ?", externalID).
			Update("points", member.Points).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) TopMembers(ctx context.Context, limit int) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).
		Order("points DESC").
		Limit(limit).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *gormRepository) Ranks(ctx context.Context) ([]models.Rank, error) {
	var ranks []models.Rank
	if err := r.db.WithContext(ctx).Order("\"order\"").Find(&ranks).Error; err != nil {
		return nil, err
	}
	return ranks, nil
}

// SeedRanks inserts the ladder only when the table is empty, so a configured
// ladder survives restarts untouched.
func (r *gormRepository) SeedRanks(ctx context.Context, ranks []models.Rank) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Rank{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ranks).Error
}

func (r *gormRepository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormRepository) GetSubmission(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubmission(ctx context.Context, s *models.Submission) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *gormRepository) PendingSubmissions(ctx context.Context) ([]models.Submission, error) {
	var subs []models.Submission
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.SubmissionPending).
		Order("created_at").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
