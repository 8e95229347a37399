package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	aggregator *Aggregator
	store      *Store
	logger     *slog.Logger
}

// NewHandler serves the aggregator's stats; store may be nil.
func NewHandler(aggregator *Aggregator, store *Store) *Handler {
	return &Handler{
		aggregator: aggregator,
		store:      store,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats writes the live stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, h.aggregator.Stats())
}

// LastSnapshot writes the most recently persisted snapshot.
func (h *Handler) LastSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.write(w, http.StatusNotFound, map[string]string{"error": "snapshot store not configured"})
		return
	}
	snap, err := h.store.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading snapshot", "error", err)
		h.write(w, http.StatusInternalServerError, map[string]string{"error": "loading snapshot failed"})
		return
	}
	if snap == nil {
		h.write(w, http.StatusNotFound, map[string]string{"error": "no snapshot saved yet"})
		return
	}
	h.write(w, http.StatusOK, snap)
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
