package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"chessrag/internal/chunker"
	"chessrag/internal/corpus"
	embedding_mocks "chessrag/internal/embedding/mocks"
	"chessrag/internal/storage"
	"chessrag/internal/tokens"
	"chessrag/internal/vectorstore"
	vectorstore_mocks "chessrag/internal/vectorstore/mocks"
)

const (
	firstGame = `[Event "Club Championship"]
[White "Adams"]
[Black "Baker"]
[Result "1-0"]

1. e4 {the most direct} e5 2. Nf3 Nc6 3. Bb5 1-0
`
	secondGame = `[Event "Club Championship"]
[White "Baker"]
[Black "Adams"]
[Result "0-1"]

1. d4 d5 2. c4 (2. Nf3 Nf6) 2... e6 0-1
`
	testCollection = "test_chunks"
)

type testEnv struct {
	pipeline *Pipeline
	games    *storage.GameRepo
	chunks   *storage.ChunkRepo
	embedder *embedding_mocks.MockEmbedder
	vectors  *vectorstore_mocks.MockVectorStore
	file     corpus.ScannedFile
}

type staticSource []corpus.ScannedFile

func (s staticSource) ScanAll(context.Context) ([]corpus.ScannedFile, error) {
	return s, nil
}

func newTestEngine(t *testing.T) *chunker.Engine {
	t.Helper()
	counter, err := tokens.NewTiktokenCounter(tokens.DefaultEncoding, 128)
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}
	engine, err := chunker.NewEngine(chunker.DefaultConfig(), counter)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func newTestEnv(t *testing.T, content string) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	root := t.TempDir()
	c, err := storage.NewCorpusRepo(db).GetOrCreateByName(context.Background(), "club", root)
	if err != nil {
		t.Fatalf("GetOrCreateByName() error = %v", err)
	}
	file := corpus.ScannedFile{
		CorpusID:   c.ID,
		CorpusName: c.Name,
		RelPath:    "2024/championship.pgn",
		AbsPath:    filepath.Join(root, "2024", "championship.pgn"),
	}
	if err := os.MkdirAll(filepath.Dir(file.AbsPath), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, file.AbsPath, content)

	env := &testEnv{
		games:    storage.NewGameRepo(db),
		chunks:   storage.NewChunkRepo(db),
		embedder: embedding_mocks.NewMockEmbedder(ctrl),
		vectors:  vectorstore_mocks.NewMockVectorStore(ctrl),
		file:     file,
	}
	env.pipeline = NewPipeline(staticSource{file}, env.games, env.chunks, env.embedder, env.vectors,
		newTestEngine(t), Settings{Collection: testCollection, EmbeddingModel: "test-model", EmbeddingBatchSize: 8, Workers: 2})
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fakeVectors(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0}
	}
	return out, nil
}

func TestNewPipeline(t *testing.T) {
	env := newTestEnv(t, firstGame)
	p := env.pipeline

	if p.settings.Collection != testCollection {
		t.Errorf("collection = %q, want %q", p.settings.Collection, testCollection)
	}
	if p.indexVersion != IndexVersion(chunker.DefaultConfig(), "test-model") {
		t.Errorf("indexVersion = %q", p.indexVersion)
	}

	defaults := NewPipeline(nil, nil, nil, nil, nil, newTestEngine(t), Settings{})
	if defaults.settings.EmbeddingBatchSize != 32 || defaults.settings.Workers != 1 {
		t.Errorf("defaults = %+v", defaults.settings)
	}
}

func TestPipeline_IndexFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, firstGame+"\n"+secondGame)
	source := env.file.Source()
	firstID := chunker.RecordID(source, 1)
	secondID := chunker.RecordID(source, 2)

	var upserted []vectorstore.Point
	env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Len(1)).DoAndReturn(fakeVectors).Times(2)
	env.vectors.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upserted = append(upserted, points...)
			return nil
		}).Times(2)

	res, err := env.pipeline.IndexFile(ctx, env.file)
	if err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
	want := FileResult{Games: 2, Indexed: 2, Chunks: 2}
	if res != want {
		t.Fatalf("IndexFile() = %+v, want %+v", res, want)
	}

	game, err := env.games.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if game.White != "Adams" || game.Seq != 1 || game.Result != "1-0" || game.RelPath != env.file.RelPath {
		t.Errorf("stored game = %+v", game)
	}

	stored, err := env.chunks.ListByGame(ctx, secondID)
	if err != nil {
		t.Fatalf("ListByGame() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("ListByGame() returned %d chunks, want 1", len(stored))
	}
	if stored[0].ID != secondID+"_0" || stored[0].Kind != string(chunker.KindWhole) {
		t.Errorf("stored chunk = %+v", stored[0])
	}
	if stored[0].PointID != vectorstore.PointID(stored[0].ID) {
		t.Errorf("PointID = %q, want derived from %q", stored[0].PointID, stored[0].ID)
	}

	if len(upserted) != 2 {
		t.Fatalf("upserted %d points, want 2", len(upserted))
	}
	p := upserted[0]
	if p.ID != vectorstore.PointID(firstID+"_0") {
		t.Errorf("point ID = %q", p.ID)
	}
	if p.Meta["game_id"] != firstID || p.Meta["corpus"] != "club" || p.Meta["kind"] != "whole" {
		t.Errorf("point payload = %v", p.Meta)
	}
	if fens, ok := p.Meta["fens"].([]any); !ok || len(fens) == 0 {
		t.Errorf("point payload fens = %v", p.Meta["fens"])
	}

	t.Run("unchanged games are skipped", func(t *testing.T) {
		res, err := env.pipeline.IndexFile(ctx, env.file)
		if err != nil {
			t.Fatalf("IndexFile() error = %v", err)
		}
		if want := (FileResult{Games: 2, Unchanged: 2}); res != want {
			t.Errorf("IndexFile() = %+v, want %+v", res, want)
		}
	})

	t.Run("changed game replaced and missing game removed", func(t *testing.T) {
		writeFile(t, env.file.AbsPath, firstGame[:len(firstGame)-len("1-0\n")]+"a6 1-0\n")

		env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Len(1)).DoAndReturn(fakeVectors)
		env.vectors.EXPECT().Delete(gomock.Any(), testCollection, []string{vectorstore.PointID(firstID + "_0")})
		env.vectors.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(1))
		env.vectors.EXPECT().Delete(gomock.Any(), testCollection, []string{vectorstore.PointID(secondID + "_0")})

		res, err := env.pipeline.IndexFile(ctx, env.file)
		if err != nil {
			t.Fatalf("IndexFile() error = %v", err)
		}
		if want := (FileResult{Games: 1, Indexed: 1, Removed: 1, Chunks: 1}); res != want {
			t.Errorf("IndexFile() = %+v, want %+v", res, want)
		}
		if _, err := env.games.GetByID(ctx, secondID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("removed game GetByID() error = %v, want ErrNotFound", err)
		}
		ids, err := env.chunks.ListPointIDsByGame(ctx, secondID)
		if err != nil || len(ids) != 0 {
			t.Errorf("removed game chunks = %v, %v", ids, err)
		}
	})
}

func TestPipeline_IndexFile_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure", func(t *testing.T) {
		env := newTestEnv(t, firstGame)
		env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return(nil, errors.New("server down"))

		if _, err := env.pipeline.IndexFile(ctx, env.file); err == nil {
			t.Fatal("IndexFile() expected error")
		}
		if n, _ := env.games.Count(ctx); n != 0 {
			t.Errorf("games stored after failure = %d, want 0", n)
		}
	})

	t.Run("vector store failure is retried on the next run", func(t *testing.T) {
		env := newTestEnv(t, firstGame)
		id := chunker.RecordID(env.file.Source(), 1)
		pointID := vectorstore.PointID(id + "_0")

		env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(fakeVectors).Times(2)
		gomock.InOrder(
			env.vectors.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(1)).Return(errors.New("qdrant unavailable")),
			env.vectors.EXPECT().Delete(gomock.Any(), testCollection, []string{pointID}),
			env.vectors.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(1)),
		)

		if _, err := env.pipeline.IndexFile(ctx, env.file); err == nil {
			t.Fatal("IndexFile() expected error")
		}
		game, err := env.games.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if game.Hash != "" {
			t.Errorf("hash after failed vector write = %q, want empty", game.Hash)
		}

		res, err := env.pipeline.IndexFile(ctx, env.file)
		if err != nil {
			t.Fatalf("IndexFile() error = %v", err)
		}
		if want := (FileResult{Games: 1, Indexed: 1, Chunks: 1}); res != want {
			t.Errorf("IndexFile() = %+v, want %+v", res, want)
		}
		game, err = env.games.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if game.Hash == "" {
			t.Error("hash not recorded after a successful run")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		env := newTestEnv(t, "[Event \"x\"]\n\n1. e4 (e5\n")
		if _, err := env.pipeline.IndexFile(ctx, env.file); err == nil {
			t.Fatal("IndexFile() expected error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t, firstGame)
		file := env.file
		file.AbsPath = filepath.Join(t.TempDir(), "absent.pgn")
		if _, err := env.pipeline.IndexFile(ctx, file); err == nil {
			t.Fatal("IndexFile() expected error")
		}
	})
}

func TestPipeline_IndexAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, firstGame)
	missing := env.file
	missing.RelPath = "absent.pgn"
	missing.AbsPath = filepath.Join(t.TempDir(), "absent.pgn")
	env.pipeline.files = staticSource{env.file, missing}

	env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(fakeVectors)
	env.vectors.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(1))

	summary, err := env.pipeline.IndexAll(ctx)
	if err == nil {
		t.Error("IndexAll() expected error for the missing file")
	}
	if summary == nil {
		t.Fatal("IndexAll() returned nil summary")
	}
	if summary.Files != 2 || summary.FailedFiles != 1 || summary.Indexed != 1 {
		t.Errorf("IndexAll() = %+v", summary)
	}

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := env.pipeline.IndexAll(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("IndexAll() error = %v, want context.Canceled", err)
		}
	})
}

func TestPipeline_EmbedBatches(t *testing.T) {
	env := newTestEnv(t, firstGame)
	env.pipeline.settings.EmbeddingBatchSize = 2

	gomock.InOrder(
		env.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"a", "b"}).DoAndReturn(fakeVectors),
		env.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"c", "d"}).DoAndReturn(fakeVectors),
		env.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"e"}).DoAndReturn(fakeVectors),
	)

	vectors, err := env.pipeline.embedBatches(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("embedBatches() error = %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("embedBatches() returned %d vectors, want 5", len(vectors))
	}
	if vectors[3][0] != 1 || vectors[4][0] != 0 {
		t.Errorf("vectors out of order: %v", vectors)
	}

	t.Run("count mismatch", func(t *testing.T) {
		env.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1}}, nil)
		if _, err := env.pipeline.embedBatches(context.Background(), []string{"x", "y"}); err == nil {
			t.Error("embedBatches() expected error")
		}
	})
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		path []int
		want string
	}{
		{nil, ""},
		{[]int{}, ""},
		{[]int{1}, "1"},
		{[]int{2, 1, 3}, "2.1.3"},
	}
	for _, tt := range tests {
		if got := joinPath(tt.path); got != tt.want {
			t.Errorf("joinPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
