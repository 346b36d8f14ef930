package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/api/health"
	"riskstrat/internal/domain/patient"
	riskservice "riskstrat/internal/services/risk"
	"riskstrat/pkg/errors"
)

type stubAssessor struct {
	err error
}

func (s stubAssessor) Assess(ctx context.Context, rec *patient.Record) (*riskservice.Assessment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &riskservice.Assessment{
		Prediction:  &patient.Prediction{PatientID: rec.ID, Risk30D: 65, Label: patient.LabelHigh},
		Explanation: "AGE (increases risk by 6.00)",
	}, nil
}

func (s stubAssessor) ModelVersion() string { return "20240101_000000" }

func newTestServer(a Assessor) http.Handler {
	h := health.New("riskstrat", "test", nil, nil)
	return NewServer(ServerConfig{}, h, a).Handler()
}

func TestAssessEndpoint(t *testing.T) {
	srv := newTestServer(stubAssessor{})
	body := `{"id":"P1","values":{"AGE":70}}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/assess", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "P1", resp.Prediction.PatientID)
	assert.Equal(t, patient.LabelHigh, resp.Prediction.Label)
	assert.NotEmpty(t, resp.Explanation)
}

func TestAssessEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		err    error
		code   int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", nil, http.StatusBadRequest},
		{"validation", http.MethodPost, `{"id":"P1"}`, errors.NewValidationError("BMI", "bad", "x"), http.StatusUnprocessableEntity},
		{"no model", http.MethodPost, `{"id":"P1"}`, errors.ErrModelNotLoaded, http.StatusServiceUnavailable},
		{"internal", http.MethodPost, `{"id":"P1"}`, errors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(stubAssessor{err: tt.err})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, "/v1/assess", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestModelEndpoint(t *testing.T) {
	srv := newTestServer(stubAssessor{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	assert.Contains(t, rec.Body.String(), "20240101_000000")
}
