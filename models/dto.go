package models

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreatePolicyRequest fields are all optional; blank ones get defaults.
type CreatePolicyRequest struct {
	Title         string `json:"title" validate:"max=255"`
	Slug          string `json:"slug" validate:"omitempty,max=120"`
	Content       string `json:"content"`
	ChangeSummary string `json:"change_summary" validate:"max=2000"`
}

type EditPolicyRequest struct {
	Content         string `json:"content" validate:"required"`
	ChangeSummary   string `json:"change_summary" validate:"max=2000"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,min=1"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type SubmitPolicyRequest struct {
	Comments        string `json:"comments" validate:"max=2000"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,min=1"`
}

// DecisionRequest carries a review or approval decision. Approved must be
// sent explicitly; a missing field is not read as a rejection.
type DecisionRequest struct {
	Approved        *bool  `json:"approved" validate:"required"`
	Comments        string `json:"comments" validate:"max=2000"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,min=1"`
}

type PolicyListParams struct {
	Status    string `form:"status"`
	Page      int    `form:"page,default=1"`
	Limit     int    `form:"limit,default=20"`
	SortBy    string `form:"sort_by,default=title"`
	SortOrder string `form:"sort_order,default=asc"`
}

type UpdateRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=admin reviewer approver editor viewer"`
}
