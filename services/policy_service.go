package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"grc-portal/helper"
	"grc-portal/logger"
	"grc-portal/metrics"
	"grc-portal/models"
	"grc-portal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	initialChangeSummary = "Initial creation"
	createdComment       = "Policy created"
	ImportChangeSummary  = "Initial import from markdown file"
	importedComment      = "Policy imported from markdown file"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// errStale is returned from inside a transaction when the guarded update
// matched no row.
var errStale = models.ErrorConflict{Message: "policy was modified by another request; reload and retry"}

var errDecisionRequired = models.ErrorValidation{Message: "approved must be set to true or false"}

// ChangeDescriber produces the summary and structured diff of a content
// edit. Implementations fall back to placeholder results rather than fail.
type ChangeDescriber interface {
	Summarize(ctx context.Context, oldContent, newContent string) string
	Diff(ctx context.Context, oldContent, newContent string) models.ChangeDiff
}

// VersionArchiver mirrors committed versions outside the database. Its
// failures are logged and never undo a commit.
type VersionArchiver interface {
	ArchiveVersion(ctx context.Context, policy *models.Policy, version *models.PolicyVersion) error
	TagRelease(ctx context.Context, policy *models.Policy, approver uuid.UUID) error
}

type PolicyService interface {
	CreatePolicy(ctx context.Context, req models.CreatePolicyRequest, actor models.Actor) (*models.Policy, error)
	GetPolicy(ctx context.Context, slug string) (*models.Policy, error)
	GetPolicies(ctx context.Context, params models.PolicyListParams) ([]models.Policy, int64, error)
	EditPolicy(ctx context.Context, slug string, req models.EditPolicyRequest, actor models.Actor) (*models.Policy, error)
	UpdateTitle(ctx context.Context, slug string, req models.UpdateTitleRequest, actor models.Actor) (*models.Policy, error)
	SubmitForReview(ctx context.Context, slug string, req models.SubmitPolicyRequest, actor models.Actor) (*models.Policy, error)
	ReviewPolicy(ctx context.Context, slug string, req models.DecisionRequest, actor models.Actor) (*models.Policy, error)
	ApprovePolicy(ctx context.Context, slug string, req models.DecisionRequest, actor models.Actor) (*models.Policy, error)
	GetPolicyVersions(ctx context.Context, slug string) ([]models.PolicyVersion, error)
	GetPolicyVersion(ctx context.Context, slug string, number int) (*models.PolicyVersion, error)
	GetWorkflowHistory(ctx context.Context, slug string) ([]models.WorkflowHistory, error)
	BackfillInitialVersions(ctx context.Context, actor models.Actor) (int, error)
}

type policyService struct {
	store     repositories.Store
	describer ChangeDescriber
	archiver  VersionArchiver
	log       zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPolicyService builds the workflow engine. archiver and m may be nil.
func NewPolicyService(store repositories.Store, describer ChangeDescriber, archiver VersionArchiver, log zerolog.Logger, m *metrics.Metrics) PolicyService {
	return &policyService{
		store:     store,
		describer: describer,
		archiver:  archiver,
		log:       logger.Component(log, "policy_service"),
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *policyService) CreatePolicy(ctx context.Context, req models.CreatePolicyRequest, actor models.Actor) (*models.Policy, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	policy := &models.Policy{
		ID:             uuid.New(),
		CurrentVersion: 1,
		MajorVersion:   models.InitialVersion.Major,
		MinorVersion:   models.InitialVersion.Minor,
		WorkflowStatus: models.StatusDraft,
	}

	policy.Title = strings.TrimSpace(req.Title)
	if policy.Title == "" {
		policy.Title = "New Policy " + s.now().Format("2006-01-02")
	}

	policy.Slug = strings.TrimSpace(req.Slug)
	if policy.Slug == "" {
		policy.Slug = "new-policy-" + policy.ID.String()[:8]
	} else if !slugPattern.MatchString(policy.Slug) {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("slug %q must be lowercase letters, digits and single hyphens", policy.Slug)}
	}

	policy.Content = req.Content
	if strings.TrimSpace(policy.Content) == "" {
		policy.Content = defaultContent(policy.Title)
	}

	summary := strings.TrimSpace(req.ChangeSummary)
	if summary == "" {
		summary = initialChangeSummary
	}

	exists, err := s.store.Policies().SlugExists(ctx, policy.Slug)
	if err != nil {
		return nil, models.ErrorStorage{Op: "check slug", Err: err}
	}
	if exists {
		return nil, models.ErrorConflict{Message: fmt.Sprintf("policy slug %q is already taken", policy.Slug)}
	}

	label := policy.VersionLabel()
	version := &models.PolicyVersion{
		PolicyID:      policy.ID,
		VersionNumber: policy.CurrentVersion,
		VersionLabel:  label,
		Content:       policy.Content,
		ContentDigest: helper.Digest(policy.Content),
		ChangeSummary: summary,
		CreatedBy:     actor.ID,
	}
	entry := &models.WorkflowHistory{
		PolicyID:    policy.ID,
		Action:      models.ActionCreated,
		PerformedBy: actor.ID,
		ToVersion:   strPtr(label),
		Comments:    strPtr(createdComment),
	}

	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Policies().Create(ctx, policy); err != nil {
			return err
		}
		if err := tx.Policies().CreateVersion(ctx, version); err != nil {
			return err
		}
		return tx.History().Append(ctx, entry)
	})
	if err != nil {
		return nil, s.failed(models.ActionCreated, policy.Slug, err)
	}

	s.metrics.RecordTransition(string(models.ActionCreated))
	s.log.Info().Str("slug", policy.Slug).Str("actor", actor.ID.String()).Msg("policy created")
	s.archiveVersion(ctx, policy, version)
	return policy, nil
}

func (s *policyService) GetPolicy(ctx context.Context, slug string) (*models.Policy, error) {
	return s.loadPolicy(ctx, slug)
}

func (s *policyService) GetPolicies(ctx context.Context, params models.PolicyListParams) ([]models.Policy, int64, error) {
	if params.Status != "" && !models.WorkflowStatus(params.Status).Valid() {
		return nil, 0, models.ErrorValidation{Message: fmt.Sprintf("unknown workflow status %q", params.Status)}
	}
	policies, total, err := s.store.Policies().GetList(ctx, params)
	if err != nil {
		return nil, 0, models.ErrorStorage{Op: "list policies", Err: err}
	}
	return policies, total, nil
}

// EditPolicy stores new content as the next minor version and sends the
// policy back to draft from whatever status it was in.
func (s *policyService) EditPolicy(ctx context.Context, slug string, req models.EditPolicyRequest, actor models.Actor) (*models.Policy, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, models.ErrorValidation{Message: "content is required"}
	}

	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.checkExpected(policy, req.ExpectedVersion, models.ActionEdited); err != nil {
		return nil, err
	}
	status, _ := nextStatus(policy.WorkflowStatus, models.ActionEdited)

	summary := strings.TrimSpace(req.ChangeSummary)
	diff, generated := s.describe(ctx, policy.Content, req.Content, summary == "")
	if summary == "" {
		summary = generated
	}

	from := policy.Version()
	to := from.BumpMinor()
	next := policy.CurrentVersion + 1

	version := &models.PolicyVersion{
		PolicyID:      policy.ID,
		VersionNumber: next,
		VersionLabel:  to.String(),
		Content:       req.Content,
		ContentDigest: helper.Digest(req.Content),
		ChangeSummary: summary,
		CreatedBy:     actor.ID,
	}
	if err := version.SetDiff(diff); err != nil {
		return nil, fmt.Errorf("encode change diff: %w", err)
	}

	entry := &models.WorkflowHistory{
		PolicyID:    policy.ID,
		Action:      models.ActionEdited,
		PerformedBy: actor.ID,
		FromVersion: strPtr(from.String()),
		ToVersion:   strPtr(to.String()),
		Comments:    strPtr(summary),
	}
	updates := map[string]interface{}{
		"content":         req.Content,
		"current_version": next,
		"minor_version":   to.Minor,
		"workflow_status": status,
	}

	updated, err := s.commit(ctx, policy, entry, updates, func(tx repositories.Store) error {
		return tx.Policies().CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("slug", slug).Str("from", from.String()).Str("to", to.String()).Msg("policy edited")
	s.archiveVersion(ctx, updated, version)
	return updated, nil
}

// UpdateTitle renames a policy without touching its versions or history.
func (s *policyService) UpdateTitle(ctx context.Context, slug string, req models.UpdateTitleRequest, actor models.Actor) (*models.Policy, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.ErrorValidation{Message: "title is required"}
	}

	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.store.Policies().UpdateTitle(ctx, policy.ID, title); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "policy", Key: slug}
		}
		return nil, models.ErrorStorage{Op: "update title", Err: err}
	}
	return s.loadPolicy(ctx, slug)
}

func (s *policyService) SubmitForReview(ctx context.Context, slug string, req models.SubmitPolicyRequest, actor models.Actor) (*models.Policy, error) {
	policy, err := s.prepare(ctx, slug, actor, req.ExpectedVersion, models.ActionSubmitted)
	if err != nil {
		return nil, err
	}
	to, err := advance(policy, models.ActionSubmitted)
	if err != nil {
		return nil, err
	}

	label := policy.VersionLabel()
	comments := strings.TrimSpace(req.Comments)
	if comments == "" {
		comments = fmt.Sprintf("Submitted version %s for review", label)
	}
	entry := &models.WorkflowHistory{
		PolicyID:    policy.ID,
		Action:      models.ActionSubmitted,
		PerformedBy: actor.ID,
		ToVersion:   strPtr(label),
		Comments:    strPtr(comments),
	}

	updated, err := s.commit(ctx, policy, entry, map[string]interface{}{"workflow_status": to}, nil)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("slug", slug).Str("version", label).Msg("policy submitted for review")
	return updated, nil
}

// ReviewPolicy passes a pending policy on to approval, or returns it to
// draft when the reviewer asks for revisions.
func (s *policyService) ReviewPolicy(ctx context.Context, slug string, req models.DecisionRequest, actor models.Actor) (*models.Policy, error) {
	if req.Approved == nil {
		return nil, errDecisionRequired
	}
	action := models.ActionRevisionRequested
	if *req.Approved {
		action = models.ActionReviewed
	}

	policy, err := s.prepare(ctx, slug, actor, req.ExpectedVersion, action)
	if err != nil {
		return nil, err
	}
	to, err := advance(policy, action)
	if err != nil {
		return nil, err
	}

	label := policy.VersionLabel()
	entry := &models.WorkflowHistory{
		PolicyID:    policy.ID,
		Action:      action,
		PerformedBy: actor.ID,
		ToVersion:   strPtr(label),
		Comments:    optional(req.Comments),
	}
	updates := map[string]interface{}{
		"workflow_status": to,
		"reviewer_id":     actor.ID,
		"reviewed_at":     s.now(),
	}

	updated, err := s.commit(ctx, policy, entry, updates, nil)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("slug", slug).Str("action", string(action)).Msg("policy reviewed")
	return updated, nil
}

// ApprovePolicy either releases the policy as the next major version or
// rejects it back to draft.
func (s *policyService) ApprovePolicy(ctx context.Context, slug string, req models.DecisionRequest, actor models.Actor) (*models.Policy, error) {
	if req.Approved == nil {
		return nil, errDecisionRequired
	}
	approved := *req.Approved
	action := models.ActionRejected
	if approved {
		action = models.ActionApproved
	}

	policy, err := s.prepare(ctx, slug, actor, req.ExpectedVersion, action)
	if err != nil {
		return nil, err
	}
	status, err := advance(policy, action)
	if err != nil {
		return nil, err
	}

	from := policy.Version()
	entry := &models.WorkflowHistory{
		PolicyID:    policy.ID,
		Action:      action,
		PerformedBy: actor.ID,
		Comments:    optional(req.Comments),
	}
	updates := map[string]interface{}{
		"workflow_status": status,
		"approver_id":     actor.ID,
	}
	if approved {
		to := from.BumpMajor()
		updates["major_version"] = to.Major
		updates["minor_version"] = to.Minor
		updates["approved_at"] = s.now()
		entry.FromVersion = strPtr(from.String())
		entry.ToVersion = strPtr(to.String())
	} else {
		entry.ToVersion = strPtr(from.String())
	}

	updated, err := s.commit(ctx, policy, entry, updates, nil)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("slug", slug).Str("action", string(action)).Str("version", updated.VersionLabel()).Msg("policy approval decided")
	if approved && s.archiver != nil {
		if err := s.archiver.TagRelease(ctx, updated, actor.ID); err != nil {
			s.log.Warn().Err(err).Str("slug", slug).Str("version", updated.VersionLabel()).Msg("tagging release in archive failed")
		}
	}
	return updated, nil
}

func (s *policyService) GetPolicyVersions(ctx context.Context, slug string) ([]models.PolicyVersion, error) {
	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.Policies().GetVersions(ctx, policy.ID)
	if err != nil {
		return nil, models.ErrorStorage{Op: "list versions", Err: err}
	}
	return versions, nil
}

func (s *policyService) GetPolicyVersion(ctx context.Context, slug string, number int) (*models.PolicyVersion, error) {
	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	version, err := s.store.Policies().GetVersion(ctx, policy.ID, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "policy version", Key: fmt.Sprintf("%s#%d", slug, number)}
		}
		return nil, models.ErrorStorage{Op: "load version", Err: err}
	}
	return version, nil
}

func (s *policyService) GetWorkflowHistory(ctx context.Context, slug string) ([]models.WorkflowHistory, error) {
	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.History().GetByPolicy(ctx, policy.ID)
	if err != nil {
		return nil, models.ErrorStorage{Op: "list history", Err: err}
	}
	return entries, nil
}

// BackfillInitialVersions gives every policy that has no version rows a
// version 1 snapshot of its current content. Each policy commits on its
// own, so the count is accurate even when an error stops the run.
func (s *policyService) BackfillInitialVersions(ctx context.Context, actor models.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	policies, err := s.store.Policies().ListWithoutVersions(ctx)
	if err != nil {
		return 0, models.ErrorStorage{Op: "list unversioned policies", Err: err}
	}

	done := 0
	for i := range policies {
		policy := &policies[i]
		label := policy.VersionLabel()
		version := &models.PolicyVersion{
			PolicyID:      policy.ID,
			VersionNumber: 1,
			VersionLabel:  label,
			Content:       policy.Content,
			ContentDigest: helper.Digest(policy.Content),
			ChangeSummary: ImportChangeSummary,
			CreatedBy:     actor.ID,
		}
		entry := &models.WorkflowHistory{
			PolicyID:    policy.ID,
			Action:      models.ActionCreated,
			PerformedBy: actor.ID,
			ToVersion:   strPtr(label),
			Comments:    strPtr(importedComment),
		}

		// A legacy policy that already has history keeps it as is.
		updated, err := s.commitAs(ctx, policy, models.ActionCreated, nil, map[string]interface{}{"current_version": 1}, func(tx repositories.Store) error {
			if err := tx.Policies().CreateVersion(ctx, version); err != nil {
				return err
			}
			existing, err := tx.History().CountByPolicy(ctx, policy.ID)
			if err != nil || existing > 0 {
				return err
			}
			return tx.History().Append(ctx, entry)
		})
		if err != nil {
			return done, fmt.Errorf("backfill %q: %w", policy.Slug, err)
		}
		done++
		s.log.Info().Str("slug", policy.Slug).Str("version", label).Msg("initial version backfilled")
		s.archiveVersion(ctx, updated, version)
	}
	return done, nil
}

// commit applies updates under the optimistic lock on policy and appends
// entry, in one transaction. with runs after the guarded update, inside the
// same transaction.
func (s *policyService) commit(ctx context.Context, policy *models.Policy, entry *models.WorkflowHistory, updates map[string]interface{}, with func(tx repositories.Store) error) (*models.Policy, error) {
	return s.commitAs(ctx, policy, entry.Action, entry, updates, with)
}

// commitAs is commit for callers that append their own history inside
// with; a nil entry appends nothing.
func (s *policyService) commitAs(ctx context.Context, policy *models.Policy, action models.WorkflowAction, entry *models.WorkflowHistory, updates map[string]interface{}, with func(tx repositories.Store) error) (*models.Policy, error) {
	var updated *models.Policy
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		ok, err := tx.Policies().UpdateIfUnchanged(ctx, policy.ID, repositories.GuardOf(policy), updates)
		if err != nil {
			return err
		}
		if !ok {
			return errStale
		}
		if with != nil {
			if err := with(tx); err != nil {
				return err
			}
		}
		if entry != nil {
			if err := tx.History().Append(ctx, entry); err != nil {
				return err
			}
		}
		updated, err = tx.Policies().GetByID(ctx, policy.ID)
		return err
	})
	if err != nil {
		return nil, s.failed(action, policy.Slug, err)
	}
	s.metrics.RecordTransition(string(action))
	return updated, nil
}

// failed maps an error returned from a workflow transaction to a models
// error and records it.
func (s *policyService) failed(action models.WorkflowAction, slug string, err error) error {
	var conflict models.ErrorConflict
	switch {
	case errors.As(err, &conflict):
	case errors.Is(err, gorm.ErrDuplicatedKey):
		conflict = models.ErrorConflict{Message: fmt.Sprintf("policy %q was changed concurrently: %v", slug, err)}
		err = conflict
	default:
		s.metrics.RecordFailure(string(action))
		s.log.Error().Err(err).Str("slug", slug).Str("action", string(action)).Msg("workflow operation rolled back")
		return models.ErrorStorage{Op: string(action), Err: err}
	}

	s.metrics.RecordConflict(string(action))
	s.log.Warn().Str("slug", slug).Str("action", string(action)).Msg("workflow write lost optimistic lock")
	return err
}

// prepare loads the policy an action targets after validating the actor
// and the caller's expected version.
func (s *policyService) prepare(ctx context.Context, slug string, actor models.Actor, expected *int, action models.WorkflowAction) (*models.Policy, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	policy, err := s.loadPolicy(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.checkExpected(policy, expected, action); err != nil {
		return nil, err
	}
	return policy, nil
}

func (s *policyService) loadPolicy(ctx context.Context, slug string) (*models.Policy, error) {
	policy, err := s.store.Policies().GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "policy", Key: slug}
		}
		return nil, models.ErrorStorage{Op: "load policy", Err: err}
	}
	return policy, nil
}

func (s *policyService) checkExpected(policy *models.Policy, expected *int, action models.WorkflowAction) error {
	if expected == nil || *expected == policy.CurrentVersion {
		return nil
	}
	s.metrics.RecordConflict(string(action))
	return models.ErrorConflict{Message: fmt.Sprintf("policy %q is at version %d, not %d", policy.Slug, policy.CurrentVersion, *expected)}
}

// describe asks the describer for the diff and, when wanted, the summary.
// Both calls run concurrently and are bounded by the describer itself.
func (s *policyService) describe(ctx context.Context, oldContent, newContent string, wantSummary bool) (models.ChangeDiff, string) {
	var (
		wg      sync.WaitGroup
		summary string
	)
	if wantSummary {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary = s.describer.Summarize(ctx, oldContent, newContent)
		}()
	}
	diff := s.describer.Diff(ctx, oldContent, newContent)
	wg.Wait()
	return diff, summary
}

func (s *policyService) archiveVersion(ctx context.Context, policy *models.Policy, version *models.PolicyVersion) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveVersion(ctx, policy, version); err != nil {
		s.log.Warn().Err(err).Str("slug", policy.Slug).Int("version", version.VersionNumber).Msg("archiving policy version failed")
	}
}

func advance(policy *models.Policy, action models.WorkflowAction) (models.WorkflowStatus, error) {
	to, ok := nextStatus(policy.WorkflowStatus, action)
	if !ok {
		return "", models.ErrorValidation{Message: fmt.Sprintf(
			"cannot apply %s to policy %q in status %s (requires %s)",
			action, policy.Slug, policy.WorkflowStatus, requiredStatus(action))}
	}
	return to, nil
}

func requireActor(actor models.Actor) error {
	if actor.ID == uuid.Nil {
		return models.ErrorValidation{Message: "an acting user is required"}
	}
	return nil
}

func defaultContent(title string) string {
	return fmt.Sprintf(`# %s

## 1 Introduction

[Add introduction here]

## 2 Policy

[Add policy content here]

## 3 Responsibilities

[Define responsibilities here]
`, title)
}

func strPtr(s string) *string {
	return &s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
