package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chessrag/internal/handlers"
	"chessrag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	// BaseContext is the parent of background indexing runs; cancelling it stops them.
	BaseContext  context.Context
	DB           handlers.Pinger
	Vectors      handlers.CollectionInspector
	Collection   string
	Indexer      handlers.Indexer
	Stats        handlers.StatsProvider
	ChunkService service.ChunkService
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	baseCtx := deps.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Vectors, deps.Collection)
	indexHandler := handlers.NewIndexHandler(baseCtx, deps.Indexer)
	statsHandler := handlers.NewStatsHandler(deps.Stats)
	chunksHandler := handlers.NewChunksHandler(deps.ChunkService)
	previewHandler := handlers.NewPreviewHandler(deps.ChunkService)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodGet, "/games/{gameID}/chunks", chunksHandler)
		r.Method(http.MethodPost, "/chunk", previewHandler)
	})

	return r
}
