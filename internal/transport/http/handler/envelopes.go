package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventEnvelope answers an event submission.
type EventEnvelope struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Routed  bool   `json:"routed"`
}

// QuarantineEnvelope reports materialization failures swallowed since start.
type QuarantineEnvelope struct {
	Total   int64            `json:"total"`
	ByEvent map[string]int64 `json:"by_event"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
