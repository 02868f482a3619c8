package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"bankcap/internal/services"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthRoutes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", path: "/", wantStatus: http.StatusOK, wantBody: `"status":"alive"`},
		{name: "live alias", path: "/live", wantStatus: http.StatusOK, wantBody: `"status":"alive"`},
		{name: "ready", path: "/ready", wantStatus: http.StatusOK, wantBody: `"status":"ready"`},
		{name: "not ready", path: "/ready", pingErr: errors.New("database is locked"), wantStatus: http.StatusServiceUnavailable, wantBody: `"status":"not_ready"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := services.NewHealthService("test", nil, map[string]services.Pinger{
				"table_sink": stubPinger{err: tt.pingErr},
			}, nil, nil)

			rec := httptest.NewRecorder()
			NewHealthHandler(svc, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
