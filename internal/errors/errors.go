package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/dissent/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrDatabaseConnection = "DATABASE_CONNECTION_ERROR"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// baseFields returns the log fields shared by every error response.
func baseFields(c *gin.Context, requestID string) map[string]interface{} {
	return map[string]interface{}{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
	}
}

func respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

// NotFound returns a 404 Not Found error response.
// It logs a warning and sends a JSON response with the error details.
func NotFound(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, middleware.GetRequestID(c))
		fields["message"] = message
		log.Warn("Resource not found", fields)
	}
	respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, middleware.GetRequestID(c))
		fields["message"] = message
		if details != nil {
			fields["details"] = details
		}
		log.Warn("Bad request", fields)
	}
	respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// ServiceUnavailable returns a 503 response, used while the dataset is not loaded or a
// dependency such as the database is unreachable.
func ServiceUnavailable(c *gin.Context, code, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, middleware.GetRequestID(c))
		fields["message"] = message
		log.Error("Service unavailable", err, fields)
	}
	if code == "" {
		code = ErrServiceUnavailable
	}
	respond(c, http.StatusServiceUnavailable, code, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// The error is logged with full context; the client only sees the message.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, middleware.GetRequestID(c))
		fields["message"] = message
		fields["method"] = c.Request.Method
		log.Error("Internal server error", err, fields)
	}
	respond(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{})
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}

	if log := middleware.GetLogger(c); log != nil {
		fields := baseFields(c, middleware.GetRequestID(c))
		fields["fields"] = details
		log.Warn("Validation error", fields)
	}
	respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// BindingError reports a failed ShouldBind call: field validation failures become a
// VALIDATION_ERROR, anything else (malformed JSON, bad types) a BAD_REQUEST.
func BindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		ValidationError(c, verrs)
		return
	}
	BadRequest(c, "Invalid request parameters", map[string]interface{}{"error": err.Error()})
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "len":
		return "Must have length of " + err.Param()
	case "gt":
		return "Must be greater than " + err.Param()
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lt":
		return "Must be less than " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "datetime":
		return "Must be a date in the format " + err.Param()
	case "uuid":
		return "Must be a valid UUID"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
