package handlers

import (
	"context"
	"net/http"
	"sync/atomic"

	"chessrag/internal/contextutil"
	"chessrag/internal/indexer"
)

// Indexer runs a full indexing pass.
type Indexer interface {
	IndexAll(ctx context.Context) (*indexer.Summary, error)
}

// IndexHandler handles HTTP requests for triggering re-indexing.
// At most one indexing pass runs at a time.
type IndexHandler struct {
	indexer Indexer
	running atomic.Bool
	// background is the parent context of asynchronous runs.
	background context.Context
}

// NewIndexHandler creates a new IndexHandler. Asynchronous runs are cancelled with ctx.
func NewIndexHandler(ctx context.Context, idx Indexer) *IndexHandler {
	return &IndexHandler{indexer: idx, background: ctx}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string           `json:"message"`
	Status  string           `json:"status"`
	Summary *indexer.Summary `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ServeHTTP handles HTTP requests for triggering re-indexing.
//
// swagger:route POST /api/index triggerIndex
//
// Starts indexing in the background and returns 202 Accepted. With ?wait=true the
// request blocks and returns the run summary. 409 Conflict while a run is active.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !h.running.CompareAndSwap(false, true) {
		logger.WarnContext(ctx, "indexing already in progress")
		writeError(w, http.StatusConflict, "Indexing already in progress")
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		defer h.running.Store(false)
		logger.InfoContext(ctx, "synchronous re-indexing triggered via API")

		summary, err := h.indexer.IndexAll(ctx)
		resp := IndexResponse{Message: "Indexing finished", Status: "completed", Summary: summary}
		if err != nil {
			logger.ErrorContext(ctx, "re-indexing completed with errors", "error", err)
			resp.Status = "completed_with_errors"
			resp.Error = err.Error()
			if summary == nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(ctx, w, http.StatusOK, resp)
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API")

	// The run outlives the request; it keeps the request logger.
	indexCtx := contextutil.WithLogger(h.background, logger)
	go func() {
		defer h.running.Store(false)
		if _, err := h.indexer.IndexAll(indexCtx); err != nil {
			logger.ErrorContext(indexCtx, "re-indexing completed with errors", "error", err)
			return
		}
		logger.InfoContext(indexCtx, "re-indexing completed successfully")
	}()

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}
