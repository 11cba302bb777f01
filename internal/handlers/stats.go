package handlers

import (
	"context"
	"net/http"

	"chessrag/internal/contextutil"
	"chessrag/internal/indexer"
)

// StatsProvider computes index coverage statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (*indexer.CoverageStats, error)
}

// StatsHandler serves GET /api/stats.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.stats.Stats(ctx)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}
