package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dishpatch/api/internal/platform/httpx"
)

// ReadinessCheck probes a backing dependency, typically the datastore.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	check ReadinessCheck
	start time.Time
}

// NewHealthHandlers builds health handlers. A nil check makes /readyz always
// report ready.
func NewHealthHandlers(check ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{check: check, start: time.Now()}
}

func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.start).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", err.Error(), http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
