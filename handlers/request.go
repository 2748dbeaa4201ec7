package handlers

import (
	"errors"

	"grc-portal/helper"
	"grc-portal/middleware"
	"grc-portal/models"

	"github.com/gin-gonic/gin"
	"gopkg.in/go-playground/validator.v9"
)

// bindJSON decodes and validates the request body, writing the error
// response itself when either step fails. An empty body decodes to the
// zero request.
func bindJSON(c *gin.Context, h *helper.HTTPHelper, req interface{}) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			h.SendBadRequest(c, "Invalid request body: "+err.Error(), h.EmptyJsonMap())
			return false
		}
	}
	if err := h.Validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			h.SendValidationError(c, validationErrors)
			return false
		}
		h.SendBadRequest(c, err.Error(), h.EmptyJsonMap())
		return false
	}
	return true
}

func actorFromContext(c *gin.Context, h *helper.HTTPHelper) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		h.SendUnauthorizedError(c, "User not found in context", h.EmptyJsonMap())
	}
	return actor, ok
}
