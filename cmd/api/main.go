package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chessrag/internal/chunker"
	"chessrag/internal/config"
	"chessrag/internal/contextutil"
	"chessrag/internal/corpus"
	"chessrag/internal/embedding"
	"chessrag/internal/http"
	"chessrag/internal/indexer"
	"chessrag/internal/service"
	"chessrag/internal/storage"
	"chessrag/internal/tokens"
	"chessrag/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API indexes annotated chess game collections (PGN) as token-bounded chunks for retrieval.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: ChessRAG API
//   description: |
//     Splits PGN game records with nested variations into self-contained chunks,
//     embeds them and stores them in Qdrant. Chunks can also be previewed without indexing.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
//   - application/x-chess-pgn
// produces:
//   - application/json

// tokenCacheSize bounds the memo of counted chunk texts.
const tokenCacheSize = 8192

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := contextutil.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	corpusRepo := storage.NewCorpusRepo(db)
	gameRepo := storage.NewGameRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	dirs := make([]corpus.Dir, len(cfg.Corpora))
	for i, c := range cfg.Corpora {
		dirs[i] = corpus.Dir{Name: c.Name, Path: c.Path}
	}
	corpora, err := corpus.NewManager(ctx, corpusRepo, dirs)
	if err != nil {
		log.Fatalf("Failed to initialize corpus manager: %v", err)
	}
	slog.Info("Corpora registered", "count", len(dirs))

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Fail fast when the embedding model does not match the collection.
	embedder := embedding.NewOpenAIClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	if _, err := embedder.EmbedTexts(ctx, []string{"1. e4 e5"}); err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	slog.Info("Embedding client validated", "model", cfg.EmbeddingModelName, "vector_size", cfg.QdrantVectorSize)

	counter, err := tokens.NewTiktokenCounter(cfg.TokenEncoding, tokenCacheSize)
	if err != nil {
		log.Fatalf("Failed to create token counter: %v", err)
	}
	engine, err := chunker.NewEngine(cfg.Chunker, counter)
	if err != nil {
		log.Fatalf("Invalid chunker configuration: %v", err)
	}
	slog.Info("Chunker ready",
		"budget", cfg.Chunker.Budget,
		"min_chunk_tokens", cfg.Chunker.MinChunkTokens,
		"encoding", cfg.TokenEncoding,
	)

	pipeline := indexer.NewPipeline(corpora, gameRepo, chunkRepo, embedder, vectorStore, engine, indexer.Settings{
		Collection:         cfg.QdrantCollection,
		EmbeddingModel:     cfg.EmbeddingModelName,
		EmbeddingBatchSize: cfg.EmbeddingBatchSize,
		Workers:            cfg.Workers,
	})

	router := http.NewRouter(&http.Deps{
		BaseContext:  ctx,
		DB:           db,
		Vectors:      vectorStore,
		Collection:   cfg.QdrantCollection,
		Indexer:      pipeline,
		Stats:        pipeline,
		ChunkService: service.NewChunkService(cfg.Chunker, counter, gameRepo, chunkRepo),
	})

	// Start indexing in background after router is ready
	go func() {
		slog.Info("Starting background indexing of corpora")
		summary, err := pipeline.IndexAll(ctx)
		if err != nil {
			slog.Error("Indexing completed with errors", "error", err)
			return
		}
		slog.Info("Indexing completed successfully", "games", summary.Games, "chunks", summary.Chunks)
	}()

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting API server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed: %v", err)
	}
	slog.Info("API server stopped")
}
