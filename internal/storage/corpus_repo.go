package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_corpus_store.go -package=mocks chessrag/internal/storage CorpusStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CorpusStore defines the interface for corpus storage operations.
type CorpusStore interface {
	// GetOrCreateByName returns the corpus with the given name, creating it if needed.
	GetOrCreateByName(ctx context.Context, name, rootPath string) (Corpus, error)
	// ListAll returns all corpora ordered by name.
	ListAll(ctx context.Context) ([]Corpus, error)
}

// CorpusRepo implements CorpusStore on SQLite.
type CorpusRepo struct {
	db *sql.DB
}

// NewCorpusRepo creates a new CorpusRepo.
func NewCorpusRepo(db *sql.DB) *CorpusRepo {
	return &CorpusRepo{db: db}
}

// GetOrCreateByName gets an existing corpus by name, or creates it if it doesn't exist.
func (r *CorpusRepo) GetOrCreateByName(ctx context.Context, name, rootPath string) (Corpus, error) {
	corpus, err := r.getBy(ctx, "name = ?", name)
	if err == nil {
		return corpus, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Corpus{}, err
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO corpora (name, root_path) VALUES (?, ?)",
		name, rootPath,
	)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to insert corpus: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to get corpus id: %w", err)
	}

	return r.getBy(ctx, "id = ?", id)
}

func (r *CorpusRepo) getBy(ctx context.Context, where string, arg any) (Corpus, error) {
	var corpus Corpus
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, root_path, created_at FROM corpora WHERE "+where,
		arg,
	).Scan(&corpus.ID, &corpus.Name, &corpus.RootPath, &createdAt)
	if err == sql.ErrNoRows {
		return Corpus{}, ErrNotFound
	}
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to query corpus: %w", err)
	}
	if corpus.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Corpus{}, err
	}
	return corpus, nil
}

// ListAll returns all corpora ordered by name.
func (r *CorpusRepo) ListAll(ctx context.Context) ([]Corpus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, root_path, created_at FROM corpora ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query corpora: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var corpora []Corpus
	for rows.Next() {
		var corpus Corpus
		var createdAt string
		if err := rows.Scan(&corpus.ID, &corpus.Name, &corpus.RootPath, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan corpus: %w", err)
		}
		if corpus.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		corpora = append(corpora, corpus)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return corpora, nil
}

// parseTimestamp parses a SQLite DATETIME column.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	// SQLite might use a different format
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
