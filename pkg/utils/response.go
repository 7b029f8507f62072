package utils

import (
	"errors"
	"log"
	"net/http"

	"pos_settlement/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// StandardResponse represents a standard API response structure
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse sends a successful response with data
func SuccessResponse(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// CreatedResponse sends a 201 created response
func CreatedResponse(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, code apperr.Code, message string) {
	c.JSON(statusCode, StandardResponse{
		Success: false,
		Message: message,
		Code:    string(code),
	})
}

// BadRequestResponse sends a 400 bad request response
func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, apperr.CodeInvalidRequest, message)
}

// UnauthorizedResponse sends a 401 unauthorized response
func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, apperr.CodeUnauthorized, message)
}

// ForbiddenResponse sends a 403 forbidden response
func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, apperr.CodeForbidden, message)
}

// AppErrorResponse maps a domain error onto its HTTP status. Anything that is
// not an *apperr.Error is logged and reported as a 500.
func AppErrorResponse(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		ErrorResponse(c, appErr.Code.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	ErrorResponse(c, http.StatusInternalServerError, apperr.CodeUnknown, "Internal server error")
}
