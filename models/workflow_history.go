package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkflowAction string

const (
	ActionCreated           WorkflowAction = "created"
	ActionEdited            WorkflowAction = "edited"
	ActionSubmitted         WorkflowAction = "submitted"
	ActionReviewed          WorkflowAction = "reviewed"
	ActionApproved          WorkflowAction = "approved"
	ActionRejected          WorkflowAction = "rejected"
	ActionRevisionRequested WorkflowAction = "revision_requested"
)

// WorkflowHistory is an append-only audit entry. Sequence orders the
// entries of one policy without relying on timestamp resolution.
type WorkflowHistory struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	PolicyID    uuid.UUID      `json:"policy_id" gorm:"type:uuid;not null;uniqueIndex:idx_history_policy_sequence"`
	Sequence    int            `json:"sequence" gorm:"not null;uniqueIndex:idx_history_policy_sequence"`
	Action      WorkflowAction `json:"action" gorm:"type:varchar(32);not null"`
	PerformedBy uuid.UUID      `json:"performed_by" gorm:"type:uuid;not null"`
	FromVersion *string        `json:"from_version"`
	ToVersion   *string        `json:"to_version"`
	Comments    *string        `json:"comments" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (WorkflowHistory) TableName() string {
	return "workflow_history"
}

func (h *WorkflowHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
