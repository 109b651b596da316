package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ReadinessCheck reports whether the process is consuming. A nil check
// means always ready.
type ReadinessCheck interface {
	Ready() error
}

// HealthHandler handles health-check endpoints: "ping" for liveness and
// "ready" for readiness.
type HealthHandler struct {
	check ReadinessCheck
}

func NewHealthHandler(check ReadinessCheck) *HealthHandler { return &HealthHandler{check: check} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.check != nil {
			if err := h.check.Ready(); err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
