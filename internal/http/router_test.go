package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"chessrag/internal/indexer"
	"chessrag/internal/service"
	"chessrag/internal/service/mocks"
	"chessrag/internal/vectorstore"
)

type stubDB struct{}

func (stubDB) PingContext(context.Context) error { return nil }

type stubVectors struct{}

func (stubVectors) GetCollectionInfo(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{PointsCount: 1}, nil
}

type stubIndexer struct{}

func (stubIndexer) IndexAll(context.Context) (*indexer.Summary, error) {
	return &indexer.Summary{}, nil
}

func (stubIndexer) Stats(context.Context) (*indexer.CoverageStats, error) {
	return &indexer.CoverageStats{}, nil
}

func newTestRouter(t *testing.T, svc service.ChunkService) http.Handler {
	t.Helper()
	return NewRouter(&Deps{
		DB:           stubDB{},
		Vectors:      stubVectors{},
		Collection:   "game_chunks",
		Indexer:      stubIndexer{},
		Stats:        stubIndexer{},
		ChunkService: svc,
	})
}

func TestRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockChunkService(ctrl)
	svc.EXPECT().GameChunks(gomock.Any(), "g1").Return(service.GameChunks{}, nil)
	svc.EXPECT().GameChunks(gomock.Any(), "nope").Return(service.GameChunks{}, service.ErrNotFound)
	svc.EXPECT().Preview(gomock.Any(), gomock.Any()).
		Return(service.PreviewResponse{}, &service.ValidationError{Field: "pgn", Message: "cannot be empty"})

	router := newTestRouter(t, svc)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /api/health", http.MethodGet, "/api/health", http.StatusOK},
		{"GET /api/stats", http.MethodGet, "/api/stats", http.StatusOK},
		{"POST /api/index waits", http.MethodPost, "/api/index?wait=true", http.StatusOK},
		{"GET game chunks", http.MethodGet, "/api/games/g1/chunks", http.StatusOK},
		{"GET missing game chunks", http.MethodGet, "/api/games/nope/chunks", http.StatusNotFound},
		{"POST /api/chunk with empty body", http.MethodPost, "/api/chunk", http.StatusBadRequest},
		{"GET /api/index method not allowed", http.MethodGet, "/api/index", http.StatusMethodNotAllowed},
		{"POST /api/stats method not allowed", http.MethodPost, "/api/stats", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := newTestRouter(t, mocks.NewMockChunkService(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockChunkService(ctrl)
	svc.EXPECT().GameChunks(gomock.Any(), "g1").DoAndReturn(func(context.Context, string) (service.GameChunks, error) {
		panic(errors.New("boom"))
	})
	router := newTestRouter(t, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/games/g1/chunks", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
