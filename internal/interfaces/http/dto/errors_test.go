package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"NOT_FOUND", http.StatusNotFound},
		{"ALREADY_EXISTS", http.StatusConflict},
		{"CONCURRENCY_CONFLICT", http.StatusConflict},
		{"OPTIMISTIC_LOCK_FAILED", http.StatusConflict},
		{"LOCK_TIMEOUT", http.StatusServiceUnavailable},
		{"INVALID_STATE", http.StatusUnprocessableEntity},
		{"INSUFFICIENT_STOCK", http.StatusUnprocessableEntity},
		{"INSUFFICIENT_LAYERS", http.StatusUnprocessableEntity},
		{"NO_STOCK_AVAILABLE", http.StatusUnprocessableEntity},
		{"NO_CHANGE", http.StatusUnprocessableEntity},
		{"CONSISTENCY_ERROR", http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}

	t.Run("unmapped INVALID codes are bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, GetHTTPStatus("INVALID_QUANTITY"))
		assert.Equal(t, http.StatusBadRequest, GetHTTPStatus("INVALID_PRIORITY"))
	})

	t.Run("unknown codes default to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("SOMETHING_ELSE"))
	})
}

func TestResponseBuilders(t *testing.T) {
	t.Run("success response", func(t *testing.T) {
		resp := NewSuccessResponse("payload")
		assert.True(t, resp.Success)
		assert.Equal(t, "payload", resp.Data)
		assert.Nil(t, resp.Error)
	})

	t.Run("error response", func(t *testing.T) {
		resp := NewErrorResponse("NOT_FOUND", "gone")
		assert.False(t, resp.Success)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
		assert.Equal(t, "gone", resp.Error.Message)
		assert.Empty(t, resp.Error.RequestID)
	})

	t.Run("error response with request id", func(t *testing.T) {
		resp := NewErrorResponseWithRequestID("NOT_FOUND", "gone", "req-1")
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})
}
