package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/pkg/logging"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

func badRequest(message string) *Error {
	return NewError(http.StatusBadRequest, message)
}

func unauthorized(message string) *Error {
	return NewError(http.StatusUnauthorized, message)
}

func forbidden(message string) *Error {
	return NewError(http.StatusForbidden, message)
}

// sendError writes err as {"error", "message"} with the status it maps to
// and aborts the chain.
func sendError(c *gin.Context, err error) {
	code, message := classify(err)
	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), logging.WithComponent("api")).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{
		"error":   strings.ToLower(http.StatusText(code)),
		"message": message,
	})
}

func classify(err error) (int, string) {
	var apiErr *Error
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.As(err, &verrs):
		return http.StatusBadRequest, bindingMessage(verrs)
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "insufficient permissions"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, strings.TrimPrefix(err.Error(), service.ErrConflict.Error()+": ")
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func bindingMessage(verrs validator.ValidationErrors) string {
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "email":
		return field + ": is not a valid email address"
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
	case "username":
		return field + ": must have only letters, numbers, dots or underscores"
	default:
		return field + ": is invalid"
	}
}

// bindJSON decodes the request body. Malformed JSON is a 400.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			sendError(c, err)
		} else {
			sendError(c, badRequest("malformed request body"))
		}
		return false
	}
	return true
}
