package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler answers liveness and readiness checks
type HealthHandler struct {
	names  []string
	checks map[string]func(context.Context) error
}

// NewHealthHandler creates a handler with no dependency checks
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]func(context.Context) error)}
}

// AddCheck registers a dependency pinged by Ready
func (h *HealthHandler) AddCheck(name string, check func(context.Context) error) {
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles GET /ready. Every registered dependency must answer within
// two seconds.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.names))
	for _, name := range h.names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	respondWithJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": results,
	})
}
