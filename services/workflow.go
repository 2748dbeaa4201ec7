package services

import "grc-portal/models"

type transitionKey struct {
	from   models.WorkflowStatus
	action models.WorkflowAction
}

// transitions lists every status change a workflow action may make. An
// edit is handled separately since it is legal from any status.
var transitions = map[transitionKey]models.WorkflowStatus{
	{models.StatusDraft, models.ActionSubmitted}:                 models.StatusPendingReview,
	{models.StatusPendingReview, models.ActionReviewed}:          models.StatusPendingApproval,
	{models.StatusPendingReview, models.ActionRevisionRequested}: models.StatusDraft,
	{models.StatusPendingApproval, models.ActionApproved}:        models.StatusApproved,
	{models.StatusPendingApproval, models.ActionRejected}:        models.StatusDraft,
}

// nextStatus returns the status a policy moves to when action is applied in
// status from. ok is false when the action is not allowed there.
func nextStatus(from models.WorkflowStatus, action models.WorkflowAction) (models.WorkflowStatus, bool) {
	if action == models.ActionEdited {
		return models.StatusDraft, true
	}
	to, ok := transitions[transitionKey{from: from, action: action}]
	return to, ok
}

// requiredStatus names the status an action must start from, for error
// messages.
func requiredStatus(action models.WorkflowAction) models.WorkflowStatus {
	for key := range transitions {
		if key.action == action {
			return key.from
		}
	}
	return ""
}
