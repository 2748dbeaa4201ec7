package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleReviewer UserRole = "reviewer"
	RoleApprover UserRole = "approver"
	RoleEditor   UserRole = "editor"
	RoleViewer   UserRole = "viewer"
)

// Role sets allowed to drive each part of the policy workflow.
var (
	EditRoles    = []UserRole{RoleAdmin, RoleEditor}
	ReviewRoles  = []UserRole{RoleAdmin, RoleReviewer}
	ApproveRoles = []UserRole{RoleAdmin, RoleApprover}
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleReviewer, RoleApprover, RoleEditor, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Role      UserRole  `json:"role" gorm:"type:varchar(16);default:'viewer'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Actor is the identity a mutating workflow operation is attributed to.
// The engine trusts it; authentication happens before it is built.
type Actor struct {
	ID   uuid.UUID
	Role UserRole
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
