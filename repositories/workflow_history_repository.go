package repositories

import (
	"context"

	"grc-portal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkflowHistoryRepository interface {
	Append(ctx context.Context, entry *models.WorkflowHistory) error
	GetByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.WorkflowHistory, error)
	CountByPolicy(ctx context.Context, policyID uuid.UUID) (int64, error)
}

type workflowHistoryRepository struct {
	db *gorm.DB
}

func NewWorkflowHistoryRepository(db *gorm.DB) WorkflowHistoryRepository {
	return &workflowHistoryRepository{db: db}
}

// Append assigns the next per-policy sequence number and inserts the entry.
// Two concurrent appends for one policy collide on the unique index rather
// than producing duplicate positions.
func (r *workflowHistoryRepository) Append(ctx context.Context, entry *models.WorkflowHistory) error {
	var last int
	err := r.db.WithContext(ctx).Model(&models.WorkflowHistory{}).
		Where("policy_id = ?", entry.PolicyID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return err
	}
	entry.Sequence = last + 1
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *workflowHistoryRepository) GetByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.WorkflowHistory, error) {
	var entries []models.WorkflowHistory
	err := r.db.WithContext(ctx).Where("policy_id = ?", policyID).
		Order("sequence asc").
		Find(&entries).Error
	return entries, err
}

func (r *workflowHistoryRepository) CountByPolicy(ctx context.Context, policyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WorkflowHistory{}).Where("policy_id = ?", policyID).Count(&count).Error
	return count, err
}
