// Package corpus registers directories of PGN files and finds the files to index.
package corpus

import (
	"context"
	"fmt"
	"path/filepath"

	"chessrag/internal/storage"
)

// Dir is a configured corpus: a name and the directory holding its PGN files.
type Dir struct {
	Name string
	Path string
}

// Manager manages corpus configuration and provides corpus lookup and path resolution.
type Manager struct {
	corpora []storage.Corpus // in configuration order
}

// NewManager registers every configured corpus in the store.
func NewManager(ctx context.Context, store storage.CorpusStore, dirs []Dir) (*Manager, error) {
	m := &Manager{}
	seen := make(map[string]bool)
	for _, d := range dirs {
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate corpus name %q", d.Name)
		}
		seen[d.Name] = true

		c, err := store.GetOrCreateByName(ctx, d.Name, d.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create corpus %s: %w", d.Name, err)
		}
		m.corpora = append(m.corpora, c)
	}
	return m, nil
}

// Corpora returns the registered corpora in configuration order.
func (m *Manager) Corpora() []storage.Corpus {
	return append([]storage.Corpus(nil), m.corpora...)
}

// ByName returns the corpus with the given name.
func (m *Manager) ByName(name string) (storage.Corpus, error) {
	for _, c := range m.corpora {
		if c.Name == name {
			return c, nil
		}
	}
	return storage.Corpus{}, fmt.Errorf("corpus not found: %s", name)
}

// AbsPath returns the absolute path of a file given its corpus ID and relative path.
func (m *Manager) AbsPath(corpusID int, relPath string) string {
	for _, c := range m.corpora {
		if c.ID == corpusID {
			return filepath.Join(c.RootPath, filepath.FromSlash(relPath))
		}
	}
	return ""
}
