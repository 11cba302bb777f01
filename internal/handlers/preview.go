package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"chessrag/internal/chunker"
	"chessrag/internal/contextutil"
	"chessrag/internal/service"
)

// maxPreviewBody bounds the PGN accepted by one preview request.
const maxPreviewBody = 4 << 20

// PreviewHandler chunks posted PGN without storing it.
type PreviewHandler struct {
	chunkService service.ChunkService
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(chunkService service.ChunkService) *PreviewHandler {
	return &PreviewHandler{chunkService: chunkService}
}

// PreviewRequest is the JSON form of a preview request.
//
// swagger:model PreviewRequest
type PreviewRequest struct {
	PGN    string `json:"pgn"`
	Source string `json:"source,omitempty"`
	Budget int    `json:"budget,omitempty"`
}

// PreviewRecordResponse is the chunking of one posted game.
type PreviewRecordResponse struct {
	Seq    int             `json:"seq"`
	White  string          `json:"white,omitempty"`
	Black  string          `json:"black,omitempty"`
	Event  string          `json:"event,omitempty"`
	Result *chunker.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PreviewResponse is the body of POST /api/chunk.
type PreviewResponse struct {
	Records []PreviewRecordResponse `json:"records"`
}

// ServeHTTP handles POST /api/chunk.
//
// swagger:route POST /api/chunk previewChunks
//
// The body is either a JSON PreviewRequest (Content-Type: application/json) or raw PGN,
// in which case source and budget come from the query string.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	req, err := decodePreview(w, r)
	if err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	svcResp, err := h.chunkService.Preview(ctx, service.PreviewRequest{
		PGN:    req.PGN,
		Source: req.Source,
		Budget: req.Budget,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to chunk PGN")
		return
	}

	resp := PreviewResponse{Records: make([]PreviewRecordResponse, len(svcResp.Records))}
	for i, rec := range svcResp.Records {
		resp.Records[i] = PreviewRecordResponse{
			Seq:    rec.Seq,
			White:  rec.White,
			Black:  rec.Black,
			Event:  rec.Event,
			Result: rec.Result,
			Error:  rec.Error,
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func decodePreview(w http.ResponseWriter, r *http.Request) (PreviewRequest, error) {
	body := http.MaxBytesReader(w, r.Body, maxPreviewBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req PreviewRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return PreviewRequest{}, err
		}
		return req, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return PreviewRequest{}, err
	}
	req := PreviewRequest{PGN: string(raw), Source: r.URL.Query().Get("source")}
	if b := r.URL.Query().Get("budget"); b != "" {
		if req.Budget, err = strconv.Atoi(b); err != nil {
			return PreviewRequest{}, err
		}
	}
	return req, nil
}
