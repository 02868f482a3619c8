package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/services"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "unknown run",
			err:        fmt.Errorf("lookup: %w", services.ErrRunNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeRunNotFound,
		},
		{
			name:       "at capacity",
			err:        services.ErrAtCapacity,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRunCapacity,
		},
		{
			name:       "run not succeeded",
			err:        fmt.Errorf("run x is failed: %w", services.ErrRunNotSucceeded),
			wantStatus: http.StatusConflict,
			wantType:   TypeRunFailed,
		},
		{
			name:       "service closed",
			err:        services.ErrServiceClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeServiceDown,
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "anything else",
			err:        fmt.Errorf("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewErrorHandler(nil, false)
			req := httptest.NewRequest(http.MethodGet, "/api/runs/x", nil)
			rec := httptest.NewRecorder()

			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/runs/x", body["instance"])
		})
	}
}

func TestErrorHandler_HandleNilError(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(nil, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestAPIErrorDetailsBecomeExtensions(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/x", nil)
	rec := httptest.NewRecorder()

	handler.HandleError(rec, req, NotFoundError("run x"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeNotFound, body["type"])
	assert.Equal(t, "NOT_FOUND", body["error_code"])
	assert.Equal(t, "run x", body["details"])
	assert.Equal(t, "run x not found", body["detail"])
}

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{name: "without stack", includeStack: false},
		{name: "with stack", includeStack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewErrorHandler(nil, tt.includeStack)
			panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

			rec := httptest.NewRecorder()
			RecoveryMiddleware(handler)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, TypeInternal, body["type"])
			if tt.includeStack {
				assert.Equal(t, "boom", body["panic"])
				assert.NotEmpty(t, body["stack"])
			} else {
				assert.NotContains(t, body, "panic")
			}
		})
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}
