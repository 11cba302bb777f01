package storage

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// Applies to every pooled connection, not just the first
		dsn += "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the corpora, games and chunks tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS corpora (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			root_path TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			corpus_id INTEGER NOT NULL,
			rel_path TEXT NOT NULL,
			seq INTEGER NOT NULL,
			white TEXT,
			black TEXT,
			event TEXT,
			result TEXT,
			hash TEXT NOT NULL,
			unavailable_positions INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (corpus_id) REFERENCES corpora(id),
			UNIQUE (corpus_id, rel_path, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			point_id TEXT NOT NULL UNIQUE,
			game_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			kind TEXT NOT NULL,
			branch_path TEXT,
			parent_chunk_id TEXT,
			token_count INTEGER NOT NULL,
			text TEXT NOT NULL,
			metadata TEXT,
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_game ON chunks (game_id, chunk_index);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
