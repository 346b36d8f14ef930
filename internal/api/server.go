package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"riskstrat/internal/api/health"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/metrics"
	riskservice "riskstrat/internal/services/risk"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// maxBodyBytes bounds a single assessment request
const maxBodyBytes = 1 << 20

// Assessor is the scoring surface exposed over HTTP
type Assessor interface {
	Assess(ctx context.Context, rec *patient.Record) (*riskservice.Assessment, error)
	ModelVersion() string
}

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr        string
	ServiceName string
	Version     string
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer registers health checks, metrics and the assessment endpoint
func NewServer(cfg ServerConfig, healthHandler *health.Handler, assessor Assessor) *Server {
	log := logger.Get().Component("http")
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)
	mux.Handle("/metrics", metrics.Handler())

	if assessor != nil {
		mux.Handle("/v1/assess", assessHandler(assessor, log))
		mux.HandleFunc("/v1/model", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"model_version": assessor.ModelVersion()})
		})
	}

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// AssessResponse is the JSON body of a successful assessment
type AssessResponse struct {
	Prediction  *patient.Prediction `json:"prediction"`
	Explanation string              `json:"explanation,omitempty"`
	Similar     int                 `json:"similar_patients"`
	Cached      bool                `json:"cached"`
}

func assessHandler(assessor Assessor, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var rec patient.Record
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON record")
			return
		}

		out, err := assessor.Assess(r.Context(), &rec)
		if err != nil {
			code := statusFor(err)
			if code >= http.StatusInternalServerError {
				log.Errorw("Assessment failed", "error", err)
			}
			writeError(w, code, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, AssessResponse{
			Prediction:  out.Prediction,
			Explanation: out.Explanation,
			Similar:     len(out.Similar),
			Cached:      out.Cached,
		})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrDataValidation), errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown waits for active requests within ctx
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	s.log.Info("HTTP server stopped")
	return nil
}
