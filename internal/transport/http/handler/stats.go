package handler

import "net/http"

// QuarantineStats exposes the materializer failure counters.
type QuarantineStats interface {
	Snapshot() map[string]int64
	Total() int64
}

type StatsHandler struct {
	quarantine QuarantineStats
}

func NewStatsHandler(q QuarantineStats) *StatsHandler { return &StatsHandler{quarantine: q} }

func (h *StatsHandler) Quarantine(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, QuarantineEnvelope{
		Total:   h.quarantine.Total(),
		ByEvent: h.quarantine.Snapshot(),
	})
}
