package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"chessrag/internal/chunker"
	"chessrag/internal/contextutil"
	"chessrag/internal/corpus"
	"chessrag/internal/embedding"
	"chessrag/internal/gametree"
	"chessrag/internal/storage"
	"chessrag/internal/vectorstore"
)

// FileSource lists the PGN files to index.
type FileSource interface {
	ScanAll(ctx context.Context) ([]corpus.ScannedFile, error)
}

// Settings tunes a Pipeline.
type Settings struct {
	Collection         string
	EmbeddingModel     string
	EmbeddingBatchSize int
	Workers            int
}

// Pipeline orchestrates the indexing of PGN files into SQLite and Qdrant.
type Pipeline struct {
	files        FileSource
	gameRepo     storage.GameStore
	chunkRepo    storage.ChunkStore
	embedder     embedding.Embedder
	vectorStore  vectorstore.VectorStore
	engine       *chunker.Engine
	settings     Settings
	indexVersion string
}

// FileResult summarises one indexed file.
type FileResult struct {
	Games     int `json:"games"`
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Removed   int `json:"removed"`
	Chunks    int `json:"chunks"`
}

// Summary is the outcome of IndexAll.
type Summary struct {
	Files       int `json:"files"`
	FailedFiles int `json:"failed_files"`
	FileResult
}

func (s *Summary) add(r FileResult) {
	s.Games += r.Games
	s.Indexed += r.Indexed
	s.Unchanged += r.Unchanged
	s.Failed += r.Failed
	s.Removed += r.Removed
	s.Chunks += r.Chunks
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	files FileSource,
	gameRepo storage.GameStore,
	chunkRepo storage.ChunkStore,
	embedder embedding.Embedder,
	vectorStore vectorstore.VectorStore,
	engine *chunker.Engine,
	settings Settings,
) *Pipeline {
	if settings.EmbeddingBatchSize < 1 {
		settings.EmbeddingBatchSize = 32
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Pipeline{
		files:        files,
		gameRepo:     gameRepo,
		chunkRepo:    chunkRepo,
		embedder:     embedder,
		vectorStore:  vectorStore,
		engine:       engine,
		settings:     settings,
		indexVersion: IndexVersion(engine.Config(), settings.EmbeddingModel),
	}
}

// IndexFile indexes every game of one PGN file.
// Games whose content and index version are unchanged are skipped; games that no longer
// exist in the file are removed. A game the engine rejects is logged and counted, and the
// rest of the file is still indexed.
func (p *Pipeline) IndexFile(ctx context.Context, file corpus.ScannedFile) (FileResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var res FileResult

	f, err := os.Open(file.AbsPath)
	if err != nil {
		return res, fmt.Errorf("failed to open file %s: %w", file.AbsPath, err)
	}
	games, err := gametree.ParseGames(f)
	_ = f.Close()
	if err != nil {
		return res, fmt.Errorf("failed to parse %s: %w", file.RelPath, err)
	}
	res.Games = len(games)

	existing, err := p.gameRepo.ListByFile(ctx, file.CorpusID, file.RelPath)
	if err != nil {
		return res, fmt.Errorf("failed to list existing games: %w", err)
	}
	stored := make(map[string]storage.GameRecord, len(existing))
	for _, g := range existing {
		stored[g.ID] = g
	}

	source := file.Source()
	current := make(map[string]struct{}, len(games))
	hashes := make(map[string]string, len(games))
	var jobs []Job
	for i, g := range games {
		seq := i + 1
		id := chunker.RecordID(source, seq)
		current[id] = struct{}{}
		hash := p.contentHash(g)
		if old, ok := stored[id]; ok && old.Hash == hash {
			logger.DebugContext(ctx, "skipping unchanged game", "game_id", id, "rel_path", file.RelPath)
			res.Unchanged++
			continue
		}
		hashes[id] = hash
		jobs = append(jobs, Job{Source: source, Seq: seq, Game: g})
	}

	outcomes, err := ChunkAll(ctx, p.engine, jobs, p.settings.Workers)
	if err != nil {
		return res, err
	}

	for _, out := range outcomes {
		if out.Err != nil {
			res.Failed++
			logger.ErrorContext(ctx, "failed to chunk game", "rel_path", file.RelPath, "seq", out.Job.Seq, "error", out.Err)
			continue
		}
		n, err := p.storeGame(ctx, file, out, hashes[out.Result.RecordID])
		if err != nil {
			return res, err
		}
		res.Indexed++
		res.Chunks += n
	}

	for id := range stored {
		if _, ok := current[id]; ok {
			continue
		}
		if err := p.removeGame(ctx, id); err != nil {
			return res, err
		}
		res.Removed++
	}

	logger.InfoContext(ctx, "indexed file",
		"rel_path", file.RelPath,
		"corpus", file.CorpusName,
		"games", res.Games,
		"indexed", res.Indexed,
		"unchanged", res.Unchanged,
		"chunks", res.Chunks,
	)
	return res, nil
}

// storeGame replaces the stored chunks of one game with a fresh chunking result and
// returns the number of chunks written.
func (p *Pipeline) storeGame(ctx context.Context, file corpus.ScannedFile, out Outcome, hash string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)
	result := out.Result
	g := out.Job.Game

	texts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedBatches(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings for %s: %w", result.RecordID, err)
	}

	oldPointIDs, err := p.chunkRepo.ListPointIDsByGame(ctx, result.RecordID)
	if err != nil {
		return 0, fmt.Errorf("failed to list old chunks: %w", err)
	}
	if len(oldPointIDs) > 0 {
		// A shrinking game leaves ids behind that no upsert would overwrite.
		if err := p.vectorStore.Delete(ctx, p.settings.Collection, oldPointIDs); err != nil {
			logger.WarnContext(ctx, "failed to delete old points from Qdrant", "error", err, "count", len(oldPointIDs))
		}
		if err := p.chunkRepo.DeleteByGame(ctx, result.RecordID); err != nil {
			return 0, fmt.Errorf("failed to delete old chunks from SQLite: %w", err)
		}
	}

	// The hash is written only once the vectors have landed, so a failed run is retried.
	game := &storage.GameRecord{
		ID:                   result.RecordID,
		CorpusID:             file.CorpusID,
		RelPath:              file.RelPath,
		Seq:                  out.Job.Seq,
		White:                g.Tag("White"),
		Black:                g.Tag("Black"),
		Event:                g.Tag("Event"),
		Result:               g.Result,
		UnavailablePositions: result.UnavailablePositions,
	}
	if err := p.gameRepo.Upsert(ctx, game); err != nil {
		return 0, fmt.Errorf("failed to upsert game: %w", err)
	}

	points := make([]vectorstore.Point, len(result.Chunks))
	for i, c := range result.Chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		pointID := vectorstore.PointID(c.ID)
		record := &storage.ChunkRecord{
			ID:            c.ID,
			PointID:       pointID,
			GameID:        result.RecordID,
			ChunkIndex:    i,
			Kind:          string(c.Kind),
			BranchPath:    joinPath(c.Metadata.BranchPath),
			ParentChunkID: c.Metadata.ParentChunkID,
			TokenCount:    c.TokenCount,
			Text:          c.Text,
			Metadata:      string(meta),
		}
		if err := p.chunkRepo.Insert(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
		points[i] = vectorstore.Point{
			ID:   pointID,
			Vec:  vectors[i],
			Meta: pointPayload(file, game, i, c),
		}
	}

	if len(points) > 0 {
		if err := p.vectorStore.Upsert(ctx, p.settings.Collection, points); err != nil {
			return 0, fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	game.Hash = hash
	if err := p.gameRepo.Upsert(ctx, game); err != nil {
		return 0, fmt.Errorf("failed to record game hash: %w", err)
	}
	return len(points), nil
}

func (p *Pipeline) removeGame(ctx context.Context, id string) error {
	pointIDs, err := p.chunkRepo.ListPointIDsByGame(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list chunks of removed game: %w", err)
	}
	if len(pointIDs) > 0 {
		if err := p.vectorStore.Delete(ctx, p.settings.Collection, pointIDs); err != nil {
			return fmt.Errorf("failed to delete points of removed game: %w", err)
		}
	}
	if err := p.gameRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete removed game: %w", err)
	}
	return nil
}

// embedBatches embeds texts in batches of the configured size, preserving order.
func (p *Pipeline) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.settings.EmbeddingBatchSize {
		end := min(start+p.settings.EmbeddingBatchSize, len(texts))
		batch, err := p.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// contentHash fingerprints a game together with the index version, so a change of
// chunker tuning or embedding model re-indexes every game.
func (p *Pipeline) contentHash(g *gametree.Game) string {
	sum := sha256.Sum256([]byte(p.indexVersion + "\n" + g.PGN()))
	return hex.EncodeToString(sum[:])
}

// IndexAll scans all corpora and indexes every PGN file.
// Errors for individual files are logged but don't stop the indexing process.
func (p *Pipeline) IndexAll(ctx context.Context) (*Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.files.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpora: %w", err)
	}

	logger.InfoContext(ctx, "starting indexing", "total_files", len(files))

	summary := &Summary{Files: len(files)}
	for _, file := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		res, err := p.IndexFile(ctx, file)
		summary.add(res)
		if err != nil {
			summary.FailedFiles++
			logger.ErrorContext(ctx, "failed to index file", "rel_path", file.RelPath, "corpus", file.CorpusName, "error", err)
			continue
		}
	}

	logger.InfoContext(ctx, "indexing completed",
		"total_files", summary.Files,
		"failed_files", summary.FailedFiles,
		"games", summary.Games,
		"indexed", summary.Indexed,
		"failed_games", summary.Failed,
	)

	if summary.FailedFiles > 0 {
		return summary, fmt.Errorf("indexing completed with %d failed files", summary.FailedFiles)
	}
	return summary, nil
}

func joinPath(path []int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// pointPayload is the Qdrant payload of one chunk.
func pointPayload(file corpus.ScannedFile, game *storage.GameRecord, index int, c chunker.Chunk) map[string]any {
	fens := make([]any, len(c.Samples))
	for i, s := range c.Samples {
		fens[i] = s.FEN
	}
	var transpositions []any
	for _, l := range c.Metadata.Transpositions {
		linked := make([]any, len(l.ChunkIDs))
		for i, id := range l.ChunkIDs {
			linked[i] = id
		}
		transpositions = append(transpositions, map[string]any{
			"fen":       l.Position.FEN,
			"chunk_ids": linked,
		})
	}

	meta := map[string]any{
		"chunk_id":    c.ID,
		"game_id":     game.ID,
		"corpus":      file.CorpusName,
		"rel_path":    file.RelPath,
		"seq":         game.Seq,
		"white":       game.White,
		"black":       game.Black,
		"event":       game.Event,
		"result":      game.Result,
		"chunk_index": index,
		"kind":        string(c.Kind),
		"branch_path": joinPath(c.Metadata.BranchPath),
		"location":    c.Metadata.Location,
		"token_count": c.TokenCount,
		"fens":        fens,
	}
	if c.Metadata.ParentChunkID != "" {
		meta["parent_chunk_id"] = c.Metadata.ParentChunkID
	}
	if len(transpositions) > 0 {
		meta["transpositions"] = transpositions
	}
	return meta
}
