package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/pkg/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Health(ctx context.Context) error { return f(ctx) }

type modelStub struct{ version string }

func (m modelStub) Ready() bool          { return m.version != "" }
func (m modelStub) ModelVersion() string { return m.version }

var (
	up   = pingerFunc(func(context.Context) error { return nil })
	down = pingerFunc(func(context.Context) error { return errors.ErrUnavailable })
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name  string
		model modelStub
		deps  map[string]Pinger
		code  int
	}{
		{"all up", modelStub{"20240101_000000"}, map[string]Pinger{"postgres": up, "redis": up}, http.StatusOK},
		{"no model", modelStub{}, map[string]Pinger{"postgres": up}, http.StatusServiceUnavailable},
		{"dependency down", modelStub{"v"}, map[string]Pinger{"postgres": up, "redis": down}, http.StatusServiceUnavailable},
		{"nil dependency skipped", modelStub{"v"}, map[string]Pinger{"clickhouse": nil}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("riskstrat", "test", tt.model, tt.deps)
			rec := httptest.NewRecorder()
			h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHealth_Degraded(t *testing.T) {
	h := New("riskstrat", "test", modelStub{"20240101_000000"}, map[string]Pinger{"postgres": up, "redis": down})
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, statusDegraded, status.Status)
	assert.Equal(t, "20240101_000000", status.ModelVersion)
	assert.Equal(t, statusUnhealthy, status.Checks["redis"].Status)
	assert.Contains(t, status.Checks["redis"].Error, "unavailable")
}

func TestLiveness(t *testing.T) {
	h := New("riskstrat", "test", nil, nil)
	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
