package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidSession     = "INVALID_SESSION"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnprocessable = "UNPROCESSABLE"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Service errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

type codeInfo struct {
	status  int
	message string
}

// codes maps every error code to its HTTP status and fallback message.
// Registration conflicts and failed logins are bad requests, not 409/401.
var codes = map[string]codeInfo{
	ErrCodeUnauthorized:       {http.StatusUnauthorized, "Authentication required"},
	ErrCodeInvalidSession:     {http.StatusForbidden, "Invalid or expired session"},
	ErrCodeInvalidCredentials: {http.StatusBadRequest, "Invalid credentials"},
	ErrCodeForbidden:          {http.StatusForbidden, "Access denied"},
	ErrCodeInvalidInput:       {http.StatusBadRequest, "Invalid request"},
	ErrCodeUnprocessable:      {http.StatusUnprocessableEntity, "Request could not be processed"},
	ErrCodeNotFound:           {http.StatusNotFound, "Resource not found"},
	ErrCodeConflict:           {http.StatusBadRequest, "Resource conflict"},
	ErrCodeInternalError:      {http.StatusInternalServerError, "Internal server error"},
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// APIError represents a standardized API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Status is the HTTP status the code is answered with.
func (e *APIError) Status() int {
	if info, ok := codes[e.Code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// NewAPIError creates a new APIError. An empty message takes the code's default.
func NewAPIError(code, message string) *APIError {
	if message == "" {
		message = codes[code].message
	}
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// Respond writes the error envelope and stops the handler chain
func Respond(c *gin.Context, code, message string) {
	err := NewAPIError(code, message)
	c.AbortWithStatusJSON(err.Status(), err)
}

func Unauthorized(c *gin.Context, message string) { Respond(c, ErrCodeUnauthorized, message) }

func InvalidSession(c *gin.Context, message string) { Respond(c, ErrCodeInvalidSession, message) }

func InvalidCredentials(c *gin.Context, message string) {
	Respond(c, ErrCodeInvalidCredentials, message)
}

func Forbidden(c *gin.Context, message string) { Respond(c, ErrCodeForbidden, message) }

func NotFound(c *gin.Context, message string) { Respond(c, ErrCodeNotFound, message) }

func BadRequest(c *gin.Context, message string) { Respond(c, ErrCodeInvalidInput, message) }

func Unprocessable(c *gin.Context, message string) { Respond(c, ErrCodeUnprocessable, message) }

func Conflict(c *gin.Context, message string) { Respond(c, ErrCodeConflict, message) }

// InternalError answers 500. message must not carry driver or stack detail.
func InternalError(c *gin.Context, message string) { Respond(c, ErrCodeInternalError, message) }

func ServiceUnavailable(c *gin.Context, message string) {
	Respond(c, ErrCodeServiceUnavailable, message)
}
