package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chessrag/internal/service"
)

// ChunksHandler serves the stored chunks of one game.
type ChunksHandler struct {
	chunkService service.ChunkService
}

// NewChunksHandler creates a new ChunksHandler.
func NewChunksHandler(chunkService service.ChunkService) *ChunksHandler {
	return &ChunksHandler{chunkService: chunkService}
}

// GameResponse describes an indexed game.
type GameResponse struct {
	ID                   string `json:"id"`
	RelPath              string `json:"rel_path"`
	Seq                  int    `json:"seq"`
	White                string `json:"white"`
	Black                string `json:"black"`
	Event                string `json:"event"`
	Result               string `json:"result"`
	UnavailablePositions int    `json:"unavailable_positions"`
}

// StoredChunkResponse is one persisted chunk.
type StoredChunkResponse struct {
	ID            string          `json:"id"`
	Index         int             `json:"index"`
	Kind          string          `json:"kind"`
	BranchPath    string          `json:"branch_path"`
	ParentChunkID string          `json:"parent_chunk_id,omitempty"`
	TokenCount    int             `json:"token_count"`
	Text          string          `json:"text"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// GameChunksResponse is the body of GET /api/games/{gameID}/chunks.
type GameChunksResponse struct {
	Game   GameResponse          `json:"game"`
	Chunks []StoredChunkResponse `json:"chunks"`
}

// ServeHTTP returns a game and its chunks.
//
// swagger:route GET /api/games/{gameID}/chunks gameChunks
func (h *ChunksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gameID := chi.URLParam(r, "gameID")

	got, err := h.chunkService.GameChunks(ctx, gameID)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load chunks")
		return
	}

	resp := GameChunksResponse{
		Game: GameResponse{
			ID:                   got.Game.ID,
			RelPath:              got.Game.RelPath,
			Seq:                  got.Game.Seq,
			White:                got.Game.White,
			Black:                got.Game.Black,
			Event:                got.Game.Event,
			Result:               got.Game.Result,
			UnavailablePositions: got.Game.UnavailablePositions,
		},
		Chunks: make([]StoredChunkResponse, len(got.Chunks)),
	}
	for i, c := range got.Chunks {
		resp.Chunks[i] = StoredChunkResponse{
			ID:            c.ID,
			Index:         c.ChunkIndex,
			Kind:          c.Kind,
			BranchPath:    c.BranchPath,
			ParentChunkID: c.ParentChunkID,
			TokenCount:    c.TokenCount,
			Text:          c.Text,
			Metadata:      c.Metadata,
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
