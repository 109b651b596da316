package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-collab-notify/internal/domain"
	"github.com/go-collab-notify/internal/pkg/validate"
)

// EventPublisher routes a domain event to its producer.
type EventPublisher interface {
	Routes(name string) bool
	Publish(ctx context.Context, ev domain.Event) error
}

// EventHandler accepts domain events from other services over HTTP.
type EventHandler struct {
	pub EventPublisher
}

func NewEventHandler(pub EventPublisher) *EventHandler { return &EventHandler{pub: pub} }

// Publish answers 202 once the event is handed to the broker. Names without
// a route are accepted and dropped.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.pub.Routes(ev.Name) {
		writeJSON(w, http.StatusAccepted, EventEnvelope{Message: "ignored", Name: ev.Name})
		return
	}
	if err := h.pub.Publish(r.Context(), ev); err != nil {
		slog.Error("event ingress publish failed", "event", ev.Name, "err", err)
		writeError(w, http.StatusServiceUnavailable, "event could not be published")
		return
	}
	writeJSON(w, http.StatusAccepted, EventEnvelope{Message: "accepted", Name: ev.Name, Routed: true})
}
