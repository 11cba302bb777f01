package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chessrag/internal/contextutil"
	"chessrag/internal/vectorstore"
)

// CollectionInspector reads vector collection metadata.
type CollectionInspector interface {
	GetCollectionInfo(ctx context.Context, collection string) (*vectorstore.CollectionInfo, error)
}

// Pinger checks that a database connection is alive. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	db                 Pinger
	vectors            CollectionInspector
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, vectors CollectionInspector, collectionName string) *HealthHandler {
	return &HealthHandler{
		db:                 db,
		vectors:            vectors,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Points stored in the vector collection, when reachable
	Points *int `json:"points,omitempty"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// Returns 200 OK when SQLite and the Qdrant collection are reachable,
// 503 Service Unavailable otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	response := HealthResponse{Checks: checks}

	if err := h.db.PingContext(checkCtx); err != nil {
		logger.WarnContext(ctx, "database health check failed", "error", err)
		checks["database"] = "error"
		issues = append(issues, "database_unavailable")
	} else {
		checks["database"] = "ok"
	}

	if points, ok := h.checkVectorStore(checkCtx, logger); ok {
		checks["vector_store"] = "ok"
		response.Points = &points
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	}

	response.Status = "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		response.Status = "unhealthy"
		response.Issues = issues
		httpStatus = http.StatusServiceUnavailable
	}
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	writeJSON(ctx, w, httpStatus, response)
}

// checkVectorStore checks if the collection is accessible and returns its point count.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) (int, bool) {
	info, err := h.vectors.GetCollectionInfo(ctx, h.collectionName)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err, "collection", h.collectionName)
		return 0, false
	}
	return info.PointsCount, true
}
