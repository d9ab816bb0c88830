package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// snapshotStore is the subset of *aggregator.Store the handler needs to
// serve historical snapshots. Declared here rather than importing the
// aggregator package directly, since internal/analytics/aggregator
// imports internal/analytics and Go forbids the cycle.
type snapshotStore interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	store      snapshotStore
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// AttachStore wires a persistent snapshot store into the handler, enabling
// GET /api/v1/analytics/history. Without it, History responds 404.
func (h *Handler) AttachStore(store snapshotStore) {
	h.store = store
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

// History handles GET /api/v1/analytics/history?limit=N, returning the most
// recent persisted stats snapshots, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "snapshot history not configured", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	snapshots, err := h.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		h.logger.Error("failed to write history response", "error", err)
	}
}
