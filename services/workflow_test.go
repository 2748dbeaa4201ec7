package services

import (
	"testing"

	"grc-portal/models"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	statuses := []models.WorkflowStatus{
		models.StatusDraft,
		models.StatusPendingReview,
		models.StatusReviewed,
		models.StatusPendingApproval,
		models.StatusApproved,
		models.StatusRejected,
	}
	actions := []models.WorkflowAction{
		models.ActionSubmitted,
		models.ActionReviewed,
		models.ActionRevisionRequested,
		models.ActionApproved,
		models.ActionRejected,
		models.ActionCreated,
	}
	legal := map[transitionKey]models.WorkflowStatus{
		{models.StatusDraft, models.ActionSubmitted}:                 models.StatusPendingReview,
		{models.StatusPendingReview, models.ActionReviewed}:          models.StatusPendingApproval,
		{models.StatusPendingReview, models.ActionRevisionRequested}: models.StatusDraft,
		{models.StatusPendingApproval, models.ActionApproved}:        models.StatusApproved,
		{models.StatusPendingApproval, models.ActionRejected}:        models.StatusDraft,
	}

	for _, from := range statuses {
		for _, action := range actions {
			to, ok := nextStatus(from, action)
			want, wantOK := legal[transitionKey{from, action}]
			assert.Equal(t, wantOK, ok, "%s from %s", action, from)
			assert.Equal(t, want, to, "%s from %s", action, from)
		}
	}
}

func TestEditIsLegalFromEveryStatus(t *testing.T) {
	for _, from := range []models.WorkflowStatus{
		models.StatusDraft,
		models.StatusPendingReview,
		models.StatusPendingApproval,
		models.StatusApproved,
		models.StatusReviewed,
		models.StatusRejected,
	} {
		to, ok := nextStatus(from, models.ActionEdited)
		assert.True(t, ok, from)
		assert.Equal(t, models.StatusDraft, to, from)
	}
}

func TestNoTransitionProducesUnusedStatuses(t *testing.T) {
	for _, to := range transitions {
		assert.NotEqual(t, models.StatusReviewed, to)
		assert.NotEqual(t, models.StatusRejected, to)
	}
}

func TestRequiredStatus(t *testing.T) {
	assert.Equal(t, models.StatusDraft, requiredStatus(models.ActionSubmitted))
	assert.Equal(t, models.StatusPendingReview, requiredStatus(models.ActionRevisionRequested))
	assert.Equal(t, models.StatusPendingApproval, requiredStatus(models.ActionApproved))
	assert.Equal(t, models.WorkflowStatus(""), requiredStatus(models.ActionCreated))
}
