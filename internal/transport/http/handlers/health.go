package http_handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is something /readyz checks. A failing optional dependency
// only degrades readiness: the service keeps serving without it.
type Dependency struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

type HealthHandler struct {
	deps    []Dependency
	timeout time.Duration
}

func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 2 * time.Second}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(h.deps))

	for _, d := range h.deps {
		if d.Pinger == nil {
			continue
		}
		err := d.Pinger.Ping(ctx)
		metrics.SetDependencyHealth(d.Name, err == nil)
		if err == nil {
			checks[d.Name] = "ok"
			continue
		}
		checks[d.Name] = "unavailable"
		if d.Optional {
			if status == "ready" {
				status = "degraded"
			}
			continue
		}
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	response.WriteJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
