package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_service.go -package=mocks chessrag/internal/service ChunkService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chessrag/internal/chunker"
	"chessrag/internal/contextutil"
	"chessrag/internal/gametree"
	"chessrag/internal/storage"
	"chessrag/internal/tokens"
)

// MaxPreviewGames caps the games chunked by a single preview request.
const MaxPreviewGames = 50

// PreviewRequest asks for the chunks of PGN text without storing anything.
type PreviewRequest struct {
	PGN string
	// Source names the text for record ids; "preview" when empty.
	Source string
	// Budget overrides the configured token budget when positive.
	Budget int
}

// PreviewRecord is the chunking of one game of a preview.
type PreviewRecord struct {
	Seq    int
	White  string
	Black  string
	Event  string
	Result *chunker.Result
	// Error is set instead of Result when the engine rejected the game.
	Error string
}

// PreviewResponse lists the games of a preview in input order.
type PreviewResponse struct {
	Records []PreviewRecord
}

// StoredChunk is a persisted chunk with its metadata kept as raw JSON.
type StoredChunk struct {
	ID            string
	ChunkIndex    int
	Kind          string
	BranchPath    string
	ParentChunkID string
	TokenCount    int
	Text          string
	Metadata      json.RawMessage
}

// GameChunks is an indexed game and its chunks in order.
type GameChunks struct {
	Game   storage.GameRecord
	Chunks []StoredChunk
}

// ChunkService exposes chunking to the HTTP layer.
type ChunkService interface {
	// Preview chunks PGN text with the configured engine.
	Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error)
	// GameChunks returns the stored chunks of an indexed game.
	GameChunks(ctx context.Context, gameID string) (GameChunks, error)
}

type chunkService struct {
	cfg     chunker.Config
	counter tokens.Counter
	games   storage.GameStore
	chunks  storage.ChunkStore
}

// NewChunkService creates a new ChunkService.
func NewChunkService(cfg chunker.Config, counter tokens.Counter, games storage.GameStore, chunks storage.ChunkStore) ChunkService {
	return &chunkService{cfg: cfg, counter: counter, games: games, chunks: chunks}
}

// Preview parses req.PGN and chunks every game in it.
func (s *chunkService) Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.PGN) == "" {
		return PreviewResponse{}, &ValidationError{Field: "pgn", Message: "cannot be empty"}
	}
	if req.Budget < 0 {
		return PreviewResponse{}, &ValidationError{Field: "budget", Message: "must not be negative"}
	}

	cfg := s.cfg
	if req.Budget > 0 {
		cfg.Budget = req.Budget
		cfg.MinChunkTokens = min(cfg.MinChunkTokens, cfg.Budget)
	}
	engine, err := chunker.NewEngine(cfg, s.counter)
	if err != nil {
		return PreviewResponse{}, &ValidationError{Field: "budget", Message: err.Error()}
	}

	games, err := gametree.ParseGames(strings.NewReader(req.PGN))
	if err != nil {
		logger.WarnContext(ctx, "preview input does not parse", "error", err)
		return PreviewResponse{}, &PGNError{Err: err}
	}
	if len(games) > MaxPreviewGames {
		return PreviewResponse{}, &ValidationError{
			Field:   "pgn",
			Message: fmt.Sprintf("has %d games, at most %d per preview", len(games), MaxPreviewGames),
		}
	}

	source := req.Source
	if source == "" {
		source = "preview"
	}

	resp := PreviewResponse{Records: make([]PreviewRecord, 0, len(games))}
	for i, g := range games {
		if err := ctx.Err(); err != nil {
			return PreviewResponse{}, err
		}
		rec := PreviewRecord{
			Seq:   i + 1,
			White: g.Tag("White"),
			Black: g.Tag("Black"),
			Event: g.Tag("Event"),
		}
		res, err := engine.Chunk(source, rec.Seq, g)
		if err != nil {
			logger.ErrorContext(ctx, "failed to chunk preview game", "seq", rec.Seq, "error", err)
			rec.Error = err.Error()
		} else {
			rec.Result = res
		}
		resp.Records = append(resp.Records, rec)
	}

	logger.InfoContext(ctx, "preview chunked", "games", len(games), "budget", cfg.Budget)
	return resp, nil
}

// GameChunks loads a game and its chunks.
func (s *chunkService) GameChunks(ctx context.Context, gameID string) (GameChunks, error) {
	if gameID == "" {
		return GameChunks{}, &ValidationError{Field: "game_id", Message: "cannot be empty"}
	}

	game, err := s.games.GetByID(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return GameChunks{}, WrapError(ErrNotFound, "game "+gameID)
	}
	if err != nil {
		return GameChunks{}, WrapError(err, "failed to load game")
	}

	records, err := s.chunks.ListByGame(ctx, gameID)
	if err != nil {
		return GameChunks{}, WrapError(err, "failed to load chunks")
	}

	out := GameChunks{Game: *game, Chunks: make([]StoredChunk, len(records))}
	for i, c := range records {
		var meta json.RawMessage
		if c.Metadata != "" {
			meta = json.RawMessage(c.Metadata)
		}
		out.Chunks[i] = StoredChunk{
			ID:            c.ID,
			ChunkIndex:    c.ChunkIndex,
			Kind:          c.Kind,
			BranchPath:    c.BranchPath,
			ParentChunkID: c.ParentChunkID,
			TokenCount:    c.TokenCount,
			Text:          c.Text,
			Metadata:      meta,
		}
	}
	return out, nil
}
