package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/dissent/internal/errors"
	"github.com/stwalsh4118/dissent/internal/services"
)

// SubmissionHandler accepts manually reported events.
type SubmissionHandler struct {
	service services.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler instance.
func NewSubmissionHandler(service services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Create handles POST /api/v1/submissions.
// Field validation happens in the service; binding only decodes the JSON body.
func (h *SubmissionHandler) Create(c *gin.Context) {
	var input services.SubmissionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), input)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			apierrors.ValidationError(c, verrs)
			return
		}
		apierrors.InternalServerError(c, "Failed to store submission", err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}
