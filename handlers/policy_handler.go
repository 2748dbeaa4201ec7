package handlers

import (
	"strconv"

	"grc-portal/helper"
	"grc-portal/models"
	"grc-portal/services"

	"github.com/gin-gonic/gin"
)

type PolicyHandler struct {
	policyService services.PolicyService
	Helper        *helper.HTTPHelper
}

func NewPolicyHandler(policyService services.PolicyService, h *helper.HTTPHelper) *PolicyHandler {
	return &PolicyHandler{policyService: policyService, Helper: h}
}

// Register mounts the policy routes on rg. The role middlewares guard the
// mutating routes.
func (h *PolicyHandler) Register(rg *gin.RouterGroup, canEdit, canReview, canApprove gin.HandlerFunc) {
	policies := rg.Group("/policies")
	{
		policies.POST("", canEdit, h.CreatePolicy)
		policies.GET("", h.GetPolicies)
		policies.GET("/:slug", h.GetPolicy)
		policies.PUT("/:slug/content", canEdit, h.EditPolicy)
		policies.PATCH("/:slug/title", canEdit, h.UpdateTitle)
		policies.POST("/:slug/submit", canEdit, h.SubmitForReview)
		policies.POST("/:slug/review", canReview, h.ReviewPolicy)
		policies.POST("/:slug/approve", canApprove, h.ApprovePolicy)
		policies.GET("/:slug/versions", h.GetPolicyVersions)
		policies.GET("/:slug/versions/:number", h.GetPolicyVersion)
		policies.GET("/:slug/history", h.GetWorkflowHistory)
	}
}

func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.CreatePolicyRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.CreatePolicy(c.Request.Context(), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Policy created", policy)
}

func (h *PolicyHandler) GetPolicies(c *gin.Context) {
	var params models.PolicyListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "Invalid query: "+err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 20
	}

	policies, total, err := h.policyService.GetPolicies(c.Request.Context(), params)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policies loaded", map[string]interface{}{
		"policies":   policies,
		"pagination": h.Helper.GeneratePaging(c, params.Limit, params.Page, int(total)),
	})
}

func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policy, err := h.policyService.GetPolicy(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy loaded", policy)
}

func (h *PolicyHandler) EditPolicy(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.EditPolicyRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.EditPolicy(c.Request.Context(), c.Param("slug"), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy updated", policy)
}

func (h *PolicyHandler) UpdateTitle(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.UpdateTitleRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.UpdateTitle(c.Request.Context(), c.Param("slug"), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy title updated", policy)
}

func (h *PolicyHandler) SubmitForReview(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.SubmitPolicyRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.SubmitForReview(c.Request.Context(), c.Param("slug"), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy submitted for review", policy)
}

func (h *PolicyHandler) ReviewPolicy(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.DecisionRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.ReviewPolicy(c.Request.Context(), c.Param("slug"), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	message := "Revisions requested"
	if *req.Approved {
		message = "Policy reviewed"
	}
	h.Helper.SendSuccess(c, message, policy)
}

func (h *PolicyHandler) ApprovePolicy(c *gin.Context) {
	actor, ok := actorFromContext(c, h.Helper)
	if !ok {
		return
	}

	var req models.DecisionRequest
	if !bindJSON(c, h.Helper, &req) {
		return
	}

	policy, err := h.policyService.ApprovePolicy(c.Request.Context(), c.Param("slug"), req, actor)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	message := "Policy rejected"
	if *req.Approved {
		message = "Policy approved"
	}
	h.Helper.SendSuccess(c, message, policy)
}

func (h *PolicyHandler) GetPolicyVersions(c *gin.Context) {
	versions, err := h.policyService.GetPolicyVersions(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy versions loaded", versions)
}

func (h *PolicyHandler) GetPolicyVersion(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		h.Helper.SendBadRequest(c, "Invalid version number", h.Helper.EmptyJsonMap())
		return
	}

	version, err := h.policyService.GetPolicyVersion(c.Request.Context(), c.Param("slug"), number)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Policy version loaded", version)
}

func (h *PolicyHandler) GetWorkflowHistory(c *gin.Context) {
	history, err := h.policyService.GetWorkflowHistory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Workflow history loaded", history)
}
