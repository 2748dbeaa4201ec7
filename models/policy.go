package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkflowStatus string

const (
	StatusDraft           WorkflowStatus = "draft"
	StatusPendingReview   WorkflowStatus = "pending_review"
	StatusReviewed        WorkflowStatus = "reviewed"
	StatusPendingApproval WorkflowStatus = "pending_approval"
	StatusApproved        WorkflowStatus = "approved"
	StatusRejected        WorkflowStatus = "rejected"
)

// Valid reports whether s is a known status. reviewed and rejected are
// accepted for stored rows but no transition produces them.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusReviewed, StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Policy struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title          string         `json:"title" gorm:"not null"`
	Slug           string         `json:"slug" gorm:"uniqueIndex;not null"`
	Content        string         `json:"content" gorm:"type:text"`
	CurrentVersion int            `json:"current_version" gorm:"not null;default:1"`
	MajorVersion   int            `json:"major_version" gorm:"not null;default:1"`
	MinorVersion   int            `json:"minor_version" gorm:"not null;default:0"`
	WorkflowStatus WorkflowStatus `json:"workflow_status" gorm:"type:varchar(32);not null;default:'draft';index"`
	ReviewerID     *uuid.UUID     `json:"reviewer_id" gorm:"type:uuid"`
	ApproverID     *uuid.UUID     `json:"approver_id" gorm:"type:uuid"`
	ReviewedAt     *time.Time     `json:"reviewed_at"`
	ApprovedAt     *time.Time     `json:"approved_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (p *Policy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Version returns the user-facing major.minor pair.
func (p *Policy) Version() Version {
	return Version{Major: p.MajorVersion, Minor: p.MinorVersion}
}

// VersionLabel renders the current version as "major.minor".
func (p *Policy) VersionLabel() string {
	return p.Version().String()
}
