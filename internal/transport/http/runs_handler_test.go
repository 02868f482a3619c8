package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bankcap/internal/etl"
	"bankcap/internal/pipeline"
	"bankcap/internal/services"
)

// MockRunService implements RunService for handler tests
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) Trigger(ctx context.Context, trigger pipeline.Trigger) (string, error) {
	args := m.Called(ctx, trigger)
	return args.String(0), args.Error(1)
}

func (m *MockRunService) List() []*services.RunRecord {
	args := m.Called()
	return args.Get(0).([]*services.RunRecord)
}

func (m *MockRunService) Get(id string) (*services.RunRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RunRecord), args.Error(1)
}

func (m *MockRunService) Results(id string) ([]etl.QueryResult, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]etl.QueryResult), args.Error(1)
}

func serve(t *testing.T, svc RunService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	NewRunsHandler(svc, nil, nil).Routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantTrigger pipeline.Trigger
	}{
		{name: "empty body defaults to api", wantTrigger: pipeline.TriggerAPI},
		{name: "explicit manual", body: `{"trigger":"manual"}`, wantTrigger: pipeline.TriggerManual},
		{name: "blank trigger defaults to api", body: `{"trigger":""}`, wantTrigger: pipeline.TriggerAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRunService)
			svc.On("Trigger", mock.Anything, tt.wantTrigger).Return("run-1", nil)

			rec := serve(t, svc, http.MethodPost, "/", tt.body)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "run-1", body["run_id"])
			assert.Equal(t, "pending", body["status"])
			assert.Equal(t, "/api/runs/run-1", body["href"])
			svc.AssertExpectations(t)
		})
	}
}

func TestTriggerRunRejectsUnknownTrigger(t *testing.T) {
	svc := new(MockRunService)

	rec := serve(t, svc, http.MethodPost, "/", `{"trigger":"schedule"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestTriggerRunRejectsMalformedBody(t *testing.T) {
	svc := new(MockRunService)

	rec := serve(t, svc, http.MethodPost, "/", `{"trigger":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestTriggerRunAtCapacity(t *testing.T) {
	svc := new(MockRunService)
	svc.On("Trigger", mock.Anything, pipeline.TriggerAPI).Return("", services.ErrAtCapacity)

	rec := serve(t, svc, http.MethodPost, "/", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "/errors/run/at-capacity", decode(t, rec)["type"])
}

func TestListRuns(t *testing.T) {
	svc := new(MockRunService)
	svc.On("List").Return([]*services.RunRecord{
		{Run: pipeline.NewRun("b", pipeline.TriggerAPI)},
		{Run: pipeline.NewRun("a", pipeline.TriggerSchedule)},
	})

	rec := serve(t, svc, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
	runs := body["runs"].([]any)
	first := runs[0].(map[string]any)["run"].(map[string]any)
	assert.Equal(t, "b", first["id"])
}

func TestGetRun(t *testing.T) {
	svc := new(MockRunService)
	run := pipeline.NewRun("run-7", pipeline.TriggerAPI)
	run.Status = pipeline.RunStatusFailed
	run.FailedStage = pipeline.StageIDTransform
	svc.On("Get", "run-7").Return(&services.RunRecord{Run: run}, nil)
	svc.On("Get", "missing").Return(nil, services.ErrRunNotFound)

	rec := serve(t, svc, http.MethodGet, "/run-7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)["run"].(map[string]any)
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "transform", got["failed_stage"])

	rec = serve(t, svc, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/errors/run/not-found", decode(t, rec)["type"])
}

func TestGetResults(t *testing.T) {
	svc := new(MockRunService)
	svc.On("Results", "ok").Return([]etl.QueryResult{
		{Name: "top_names", SQL: "SELECT BankName FROM Largest_banks LIMIT 5", Columns: []string{"BankName"}, Rows: [][]any{{"Bank A"}}},
	}, nil)
	svc.On("Results", "failed").Return(nil, fmt.Errorf("run failed is failed: %w", services.ErrRunNotSucceeded))
	svc.On("Results", "empty").Return(nil, nil)

	rec := serve(t, svc, http.MethodGet, "/ok/results", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["run_id"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "top_names", results[0].(map[string]any)["name"])

	rec = serve(t, svc, http.MethodGet, "/failed/results", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, svc, http.MethodGet, "/empty/results", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["results"])
}
