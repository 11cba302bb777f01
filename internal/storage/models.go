package storage

import "time"

// Corpus is a configured directory of PGN files.
type Corpus struct {
	ID        int
	Name      string
	RootPath  string
	CreatedAt time.Time
}

// GameRecord is one indexed game. ID is the chunker record id.
type GameRecord struct {
	ID                   string
	CorpusID             int
	RelPath              string // PGN file, relative to the corpus root
	Seq                  int    // position of the game inside its file
	White                string
	Black                string
	Event                string
	Result               string
	Hash                 string // SHA256 hex of the re-serialised game
	UnavailablePositions int
	UpdatedAt            time.Time
}

// ChunkRecord is a persisted chunk.
type ChunkRecord struct {
	ID            string // chunk id, e.g. g1a2b..._1_2
	PointID       string // Qdrant point UUID derived from ID
	GameID        string
	ChunkIndex    int
	Kind          string
	BranchPath    string // "1.2", empty for the main game
	ParentChunkID string
	TokenCount    int
	Text          string
	Metadata      string // JSON-encoded chunker.Metadata
}
