package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"riskstrat/pkg/logger"
)

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Health(ctx context.Context) error
}

// ModelStatus reports whether a model set is loaded for scoring
type ModelStatus interface {
	Ready() bool
	ModelVersion() string
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	deps        map[string]Pinger
	model       ModelStatus
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a health handler. Nil dependencies are not checked.
func New(serviceName, version string, model ModelStatus, deps map[string]Pinger) *Handler {
	active := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			active[name] = p
		}
	}
	return &Handler{
		log:         logger.Get().Component("health"),
		deps:        active,
		model:       model,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                     `json:"status"` // healthy, degraded, unhealthy
	Service      string                     `json:"service"`
	Version      string                     `json:"version"`
	ModelVersion string                     `json:"model_version,omitempty"`
	Uptime       string                     `json:"uptime"`
	Timestamp    string                     `json:"timestamp"`
	Checks       map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HandleLiveness returns 200 while the process is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness requires a loaded model and every configured dependency
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, healthy, total := h.collect(ctx)
	code := http.StatusOK
	if healthy < total {
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth reports every check; partial failure is degraded, not down
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, healthy, total := h.collect(ctx)
	code := http.StatusOK
	switch {
	case healthy == 0:
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case healthy < total:
		status.Status = statusDegraded
	}
	writeJSON(w, code, status)
}

func (h *Handler) collect(ctx context.Context) (HealthStatus, int, int) {
	checks := make(map[string]ComponentHealth, len(h.deps)+1)

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks[name] = h.ping(ctx, name, h.deps[name])
	}

	status := HealthStatus{
		Status:    statusHealthy,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if h.model != nil && h.model.Ready() {
		checks["model"] = ComponentHealth{Status: statusHealthy}
		status.ModelVersion = h.model.ModelVersion()
	} else {
		checks["model"] = ComponentHealth{Status: statusUnhealthy, Error: "model set not loaded"}
	}

	healthy := 0
	for _, c := range checks {
		if c.Status == statusHealthy {
			healthy++
		}
	}
	return status, healthy, len(checks)
}

func (h *Handler) ping(ctx context.Context, name string, p Pinger) ComponentHealth {
	start := time.Now()
	err := p.Health(ctx)
	elapsed := time.Since(start)
	if err != nil {
		h.log.Errorw("Health check failed", "dependency", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{Status: statusUnhealthy, ResponseTime: elapsed.String(), Error: err.Error()}
	}
	return ComponentHealth{Status: statusHealthy, ResponseTime: elapsed.String()}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
