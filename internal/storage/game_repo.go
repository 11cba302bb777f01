package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_game_store.go -package=mocks chessrag/internal/storage GameStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const gameColumns = "id, corpus_id, rel_path, seq, white, black, event, result, hash, unavailable_positions, updated_at"

// GameStore defines the interface for game storage operations.
type GameStore interface {
	// GetByID gets a game by its record id. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*GameRecord, error)
	// Upsert inserts a new game or updates the stored one with the same id.
	Upsert(ctx context.Context, game *GameRecord) error
	// ListByFile returns the games of one PGN file ordered by seq.
	ListByFile(ctx context.Context, corpusID int, relPath string) ([]GameRecord, error)
	// Delete removes a game and, by cascade, its chunks.
	Delete(ctx context.Context, id string) error
	// Count returns the number of stored games.
	Count(ctx context.Context) (int, error)
}

// GameRepo implements GameStore on SQLite.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a new GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*GameRecord, error) {
	var g GameRecord
	var white, black, event, result sql.NullString
	var updatedAt string
	if err := row.Scan(&g.ID, &g.CorpusID, &g.RelPath, &g.Seq, &white, &black, &event, &result,
		&g.Hash, &g.UnavailablePositions, &updatedAt); err != nil {
		return nil, err
	}
	g.White, g.Black, g.Event, g.Result = white.String, black.String, event.String, result.String

	var err error
	if g.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByID gets a game by its record id. Returns ErrNotFound if not found.
func (r *GameRepo) GetByID(ctx context.Context, id string) (*GameRecord, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query game: %w", err)
	}
	return g, nil
}

// Upsert inserts a new game or updates an existing one.
// The id is the chunker record id and must be set by the caller.
func (r *GameRepo) Upsert(ctx context.Context, game *GameRecord) error {
	if game.ID == "" {
		return fmt.Errorf("game id is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (id, corpus_id, rel_path, seq, white, black, event, result, hash, unavailable_positions, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
		 white = excluded.white, black = excluded.black, event = excluded.event, result = excluded.result,
		 hash = excluded.hash, unavailable_positions = excluded.unavailable_positions, updated_at = CURRENT_TIMESTAMP`,
		game.ID, game.CorpusID, game.RelPath, game.Seq, game.White, game.Black, game.Event, game.Result,
		game.Hash, game.UnavailablePositions,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

// ListByFile returns the games of one PGN file ordered by seq.
// Returns an empty slice if the file has no games (not an error).
func (r *GameRepo) ListByFile(ctx context.Context, corpusID int, relPath string) ([]GameRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE corpus_id = ? AND rel_path = ? ORDER BY seq",
		corpusID, relPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var games []GameRecord
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return games, nil
}

// Delete removes a game and its chunks.
func (r *GameRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

// Count returns the number of stored games.
func (r *GameRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}
