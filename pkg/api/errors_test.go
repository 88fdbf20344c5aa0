package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/maskd/pkg/services"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation error",
			err:        services.NewValidationError("target", "missing field"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "missing field",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("load job: %w", services.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   "resource not found",
		},
		{
			name:       "job past cancellation",
			err:        services.ErrNotCancellable,
			wantStatus: http.StatusConflict,
			wantBody:   "scrub job is not in a cancellable state",
		},
		{
			name:       "wrapped duplicate",
			err:        fmt.Errorf("create job: %w", services.ErrAlreadyExists),
			wantStatus: http.StatusConflict,
			wantBody:   "resource already exists",
		},
		{
			name:       "anything else stays opaque",
			err:        fmt.Errorf("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			respondServiceError(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tt.wantBody)
		})
	}
}

func TestRespondBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondBadRequest(c, "invalid limit: must be a positive integer")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid limit: must be a positive integer", body.Error)
}
