package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase-io/gridbase/internal/shared/errors"
)

// APIResponse represents a standard API response structure.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorInfo represents error information in an API response.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response with a custom status code.
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse sends a plain error with a custom status code.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   &ErrorInfo{Kind: string(errors.KindInternal), Message: message},
	})
}

// AppErrorResponse sends a classified application error. INTERNAL errors are
// reduced to a generic message so programming faults never leak details.
func AppErrorResponse(c *gin.Context, err error) {
	appErr := errors.Classify(err)
	info := &ErrorInfo{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Kind == errors.KindInternal {
		info.Message = "internal error"
		info.Details = ""
	}
	c.JSON(appErr.Code, APIResponse{Success: false, Error: info})
}
