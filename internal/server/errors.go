package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/casebridge/internal/activity/domain"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/normalize"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// validationErrs maps to 400: the push itself was malformed and a retry with
// the same payload will fail again.
var validationErrs = []error{
	orgdomain.ErrInvalidExternalRef,
	orgdomain.ErrInvalidName,
	userdomain.ErrInvalidExternalRef,
	userdomain.ErrInvalidEmail,
	userdomain.ErrInvalidName,
	casedomain.ErrInvalidExternalRef,
	casedomain.ErrInvalidAccountNumber,
	casedomain.ErrInvalidStatus,
	casedomain.ErrInvalidStage,
	paymentdomain.ErrInvalidExternalRef,
	paymentdomain.ErrInvalidCaseRef,
	activitydomain.ErrInvalidCaseRef,
	activitydomain.ErrInvalidType,
	activitydomain.ErrInvalidOrigin,
	activitydomain.ErrInvalidBody,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	normalize.ErrInvalidAmount,
	normalize.ErrInvalidDate,
}

// notFoundErrs maps to 404: either the record itself or a dependency the
// push assumed is absent.
var notFoundErrs = []error{
	orgdomain.ErrNotFound,
	userdomain.ErrNotFound,
	userdomain.ErrDependencyNotFound,
	casedomain.ErrNotFound,
	casedomain.ErrDependencyNotFound,
	paymentdomain.ErrNotFound,
	paymentdomain.ErrDependencyNotFound,
	activitydomain.ErrDependencyNotFound,
	gorm.ErrRecordNotFound,
}

// conflictErrs maps to 409: the store holds state the push cannot overwrite.
var conflictErrs = []error{
	casedomain.ErrDuplicateReference,
	paymentdomain.ErrCaseMismatch,
	paymentdomain.ErrAlreadyReversed,
	paymentdomain.ErrDeleted,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: target.Error(),
			}
		}
	}
	for _, target := range notFoundErrs {
		if errors.Is(err, target) {
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Message: target.Error(),
			}
		}
	}
	for _, target := range conflictErrs {
		if errors.Is(err, target) {
			return http.StatusConflict, errorPayload{
				Type:    "conflict",
				Message: target.Error(),
			}
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "invalid request"}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
