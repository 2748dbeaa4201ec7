package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeDiff describes a content change for display. It never feeds the
// numbering rules.
type ChangeDiff struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Normalize replaces nil slices so the diff always serializes as arrays.
func (d ChangeDiff) Normalize() ChangeDiff {
	if d.Added == nil {
		d.Added = []string{}
	}
	if d.Removed == nil {
		d.Removed = []string{}
	}
	if d.Modified == nil {
		d.Modified = []string{}
	}
	return d
}

func (d ChangeDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// PolicyVersion is an immutable content snapshot, one per content edit.
type PolicyVersion struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	PolicyID      uuid.UUID      `json:"policy_id" gorm:"type:uuid;not null;uniqueIndex:idx_policy_version_number"`
	VersionNumber int            `json:"version_number" gorm:"not null;uniqueIndex:idx_policy_version_number"`
	VersionLabel  string         `json:"version_label" gorm:"not null"`
	Content       string         `json:"content" gorm:"type:text"`
	ContentDigest string         `json:"content_digest" gorm:"type:varchar(64)"`
	ChangeSummary string         `json:"change_summary" gorm:"type:text"`
	ChangesDiff   datatypes.JSON `json:"changes_diff" gorm:"type:jsonb"`
	CreatedBy     uuid.UUID      `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (v *PolicyVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// SetDiff stores d as the structured diff of this version.
func (v *PolicyVersion) SetDiff(d ChangeDiff) error {
	raw, err := json.Marshal(d.Normalize())
	if err != nil {
		return err
	}
	v.ChangesDiff = datatypes.JSON(raw)
	return nil
}

// Diff decodes the structured diff. It returns nil when none was recorded.
func (v *PolicyVersion) Diff() (*ChangeDiff, error) {
	if len(v.ChangesDiff) == 0 || string(v.ChangesDiff) == "null" {
		return nil, nil
	}
	var d ChangeDiff
	if err := json.Unmarshal(v.ChangesDiff, &d); err != nil {
		return nil, err
	}
	d = d.Normalize()
	return &d, nil
}
