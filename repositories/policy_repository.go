package repositories

import (
	"context"
	"fmt"
	"time"

	"grc-portal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PolicyGuard is the state a conditional update expects to find.
type PolicyGuard struct {
	CurrentVersion int
	MajorVersion   int
	MinorVersion   int
	WorkflowStatus models.WorkflowStatus
}

func GuardOf(p *models.Policy) PolicyGuard {
	return PolicyGuard{
		CurrentVersion: p.CurrentVersion,
		MajorVersion:   p.MajorVersion,
		MinorVersion:   p.MinorVersion,
		WorkflowStatus: p.WorkflowStatus,
	}
}

type PolicyRepository interface {
	Create(ctx context.Context, policy *models.Policy) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	GetBySlug(ctx context.Context, slug string) (*models.Policy, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetList(ctx context.Context, params models.PolicyListParams) ([]models.Policy, int64, error)
	UpdateIfUnchanged(ctx context.Context, id uuid.UUID, guard PolicyGuard, updates map[string]interface{}) (bool, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	CreateVersion(ctx context.Context, version *models.PolicyVersion) error
	GetVersions(ctx context.Context, policyID uuid.UUID) ([]models.PolicyVersion, error)
	GetVersion(ctx context.Context, policyID uuid.UUID, number int) (*models.PolicyVersion, error)
	ListWithoutVersions(ctx context.Context) ([]models.Policy, error)
}

type policyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

var policySortColumns = map[string]string{
	"title":      "title",
	"slug":       "slug",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "workflow_status",
}

func (r *policyRepository) Create(ctx context.Context, policy *models.Policy) error {
	return r.db.WithContext(ctx).Create(policy).Error
}

func (r *policyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).First(&policy, "id = ?", id).Error
	return &policy, err
}

func (r *policyRepository) GetBySlug(ctx context.Context, slug string) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&policy).Error
	return &policy, err
}

func (r *policyRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Policy{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *policyRepository) GetList(ctx context.Context, params models.PolicyListParams) ([]models.Policy, int64, error) {
	var policies []models.Policy
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Policy{})
	if params.Status != "" {
		query = query.Where("workflow_status = ?", params.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := policySortColumns[params.SortBy]
	if !ok {
		column = "title"
	}
	order := "asc"
	if params.SortOrder == "desc" {
		order = "desc"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}

	err := query.Order(fmt.Sprintf("%s %s", column, order)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&policies).Error
	return policies, total, err
}

// UpdateIfUnchanged applies updates only while the row still matches guard.
// It reports false when another writer got there first.
func (r *policyRepository) UpdateIfUnchanged(ctx context.Context, id uuid.UUID, guard PolicyGuard, updates map[string]interface{}) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Policy{}).
		Where("id = ? AND current_version = ? AND major_version = ? AND minor_version = ? AND workflow_status = ?",
			id, guard.CurrentVersion, guard.MajorVersion, guard.MinorVersion, guard.WorkflowStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *policyRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	res := r.db.WithContext(ctx).Model(&models.Policy{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *policyRepository) CreateVersion(ctx context.Context, version *models.PolicyVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *policyRepository) GetVersions(ctx context.Context, policyID uuid.UUID) ([]models.PolicyVersion, error) {
	var versions []models.PolicyVersion
	err := r.db.WithContext(ctx).Where("policy_id = ?", policyID).
		Order("version_number desc").
		Find(&versions).Error
	return versions, err
}

func (r *policyRepository) GetVersion(ctx context.Context, policyID uuid.UUID, number int) (*models.PolicyVersion, error) {
	var version models.PolicyVersion
	err := r.db.WithContext(ctx).Where("policy_id = ? AND version_number = ?", policyID, number).
		First(&version).Error
	return &version, err
}

func (r *policyRepository) ListWithoutVersions(ctx context.Context) ([]models.Policy, error) {
	var policies []models.Policy
	err := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM policy_versions pv WHERE pv.policy_id = policies.id)").
		Order("title asc").
		Find(&policies).Error
	return policies, err
}
