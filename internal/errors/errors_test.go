package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		respond func(*gin.Context)
		status  int
		code    string
		message string
	}{
		{"unauthorized default", func(c *gin.Context) { Unauthorized(c, "") }, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required"},
		{"invalid session", func(c *gin.Context) { InvalidSession(c, "") }, http.StatusForbidden, ErrCodeInvalidSession, "Invalid or expired session"},
		{"invalid credentials", func(c *gin.Context) { InvalidCredentials(c, "") }, http.StatusBadRequest, ErrCodeInvalidCredentials, "Invalid credentials"},
		{"conflict is a bad request", func(c *gin.Context) { Conflict(c, "Email already exists") }, http.StatusBadRequest, ErrCodeConflict, "Email already exists"},
		{"unprocessable", func(c *gin.Context) { Unprocessable(c, "") }, http.StatusUnprocessableEntity, ErrCodeUnprocessable, "Request could not be processed"},
		{"not found", func(c *gin.Context) { NotFound(c, "Task not found") }, http.StatusNotFound, ErrCodeNotFound, "Task not found"},
		{"internal", func(c *gin.Context) { InternalError(c, "") }, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error"},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.respond(c)

			assert.True(t, c.IsAborted())
			require.Equal(t, tt.status, w.Code)

			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestAPIError_UnknownCode(t *testing.T) {
	err := NewAPIError("SOMETHING_ELSE", "boom")
	assert.Equal(t, http.StatusInternalServerError, err.Status())
	assert.Equal(t, "boom", err.Error())
}
