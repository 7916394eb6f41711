package httpd

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 3 * time.Second

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "evidence-service",
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, response)
}

// ReadyCheck опрашивает все зависимости; одна упавшая переводит сервис в not_ready
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn().
				Err(err).
				Str("dependency", check.Name).
				Msg("Readiness check failed")
			checks[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[check.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
