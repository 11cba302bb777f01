package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks chessrag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
)

const chunkColumns = "id, point_id, game_id, chunk_index, kind, branch_path, parent_chunk_id, token_count, text, metadata"

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk. ID and PointID must be set.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteByGame deletes all chunks of a game.
	DeleteByGame(ctx context.Context, gameID string) error
	// ListPointIDsByGame returns the vector point ids of a game's chunks, ordered by chunk_index.
	ListPointIDsByGame(ctx context.Context, gameID string) ([]string, error)
	// ListByGame returns a game's chunks ordered by chunk_index.
	ListByGame(ctx context.Context, gameID string) ([]ChunkRecord, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// ListAll returns every stored chunk without its text, for statistics.
	ListAll(ctx context.Context) ([]ChunkRecord, error)
}

// ChunkRepo implements ChunkStore on SQLite.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert inserts a single chunk into the database.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		chunk.ID, chunk.PointID, chunk.GameID, chunk.ChunkIndex, chunk.Kind, chunk.BranchPath,
		chunk.ParentChunkID, chunk.TokenCount, chunk.Text, chunk.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteByGame deletes all chunks for a given game.
// Used when re-indexing a game to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteByGame(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE game_id = ?", gameID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by game: %w", err)
	}
	return nil
}

// ListPointIDsByGame returns the Qdrant point ids of a game's chunks.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListPointIDsByGame(ctx context.Context, gameID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT point_id FROM chunks WHERE game_id = ? ORDER BY chunk_index",
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query point IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan point ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListByGame returns a game's chunks ordered by chunk_index.
func (r *ChunkRepo) ListByGame(ctx context.Context, gameID string) ([]ChunkRecord, error) {
	return r.list(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE game_id = ? ORDER BY chunk_index", gameID)
}

// ListAll returns every stored chunk with its text left empty.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]ChunkRecord, error) {
	return r.list(ctx,
		"SELECT id, point_id, game_id, chunk_index, kind, branch_path, parent_chunk_id, token_count, '', metadata FROM chunks ORDER BY game_id, chunk_index")
}

func (r *ChunkRepo) list(ctx context.Context, query string, args ...any) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

func scanChunk(row rowScanner) (*ChunkRecord, error) {
	var c ChunkRecord
	var branchPath, parentID, metadata sql.NullString
	if err := row.Scan(&c.ID, &c.PointID, &c.GameID, &c.ChunkIndex, &c.Kind, &branchPath, &parentID,
		&c.TokenCount, &c.Text, &metadata); err != nil {
		return nil, err
	}
	c.BranchPath, c.ParentChunkID, c.Metadata = branchPath.String, parentID.String, metadata.String
	return &c, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	c, err := scanChunk(r.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	return c, nil
}
