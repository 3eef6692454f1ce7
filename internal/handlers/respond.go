package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/dissent/internal/errors"
	"github.com/stwalsh4118/dissent/internal/services"
)

// NoLocationDetails is the message returned when a marker label resolves to no rows.
const NoLocationDetails = "No details available for this location"

// serviceError maps service-level errors onto the standard error responses.
func serviceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrDatasetUnavailable):
		apierrors.ServiceUnavailable(c, "", "Dataset is not loaded", err)
	case errors.Is(err, services.ErrInvalidDateRange), errors.Is(err, services.ErrInvalidFilter):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrLocationNotFound):
		apierrors.NotFound(c, NoLocationDetails)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
