// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/i18n"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func NotFoundResponse(c *gin.Context, key string, details interface{}) {
	lang := GetLangFromContext(c)
	ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", i18n.T(lang, key), details)
}

func ConflictResponse(c *gin.Context, message string, details interface{}) {
	ErrorResponse(c, http.StatusConflict, "CONFLICT", message, details)
}

func InternalErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyInternalError)
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

func ValidationErrorResponse(c *gin.Context, message string, violations []apperr.FieldViolation) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyValidationInvalid, "input")
	}
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, violations)
}

// DomainErrorResponse writes the status matching a service error.
func DomainErrorResponse(c *gin.Context, err error) {
	lang := GetLangFromContext(c)

	var (
		verr *apperr.ValidationError
		nf   *apperr.NotFoundError
		nr   *apperr.NotReversibleError
		su   *apperr.SourceUnavailableError
	)
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(c, verr.Error(), GetValidationErrors(err))
	case errors.As(err, &nf):
		NotFoundResponse(c, notFoundKey(nf.Kind), gin.H{"kind": nf.Kind, "id": nf.ID})
	case errors.As(err, &nr):
		ConflictResponse(c, i18n.T(lang, i18n.KeyAuditNotReversible), gin.H{"entry_id": nr.EntryID, "reason": nr.Reason})
	case errors.As(err, &su):
		ErrorResponse(c, http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", i18n.T(lang, i18n.KeySnapshotUnavailable), su.Failures)
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		InternalErrorResponse(c, "")
	}
}

func notFoundKey(kind string) string {
	switch kind {
	case "school":
		return i18n.KeySchoolNotFound
	case "user":
		return i18n.KeyUserNotFound
	default:
		return i18n.KeyAuditNotFound
	}
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

// GetActorFromContext returns the operator set by the actor middleware. The
// bool is false when the request carried no identity.
func GetActorFromContext(c *gin.Context) (models.Actor, bool) {
	id := c.GetString("actor_id")
	if id == "" {
		return models.Actor{}, false
	}
	return models.Actor{
		ID:    id,
		Name:  c.GetString("actor_name"),
		Email: c.GetString("actor_email"),
	}, true
}
