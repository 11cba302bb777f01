package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScannedFile is a PGN file found during corpus scanning.
type ScannedFile struct {
	CorpusID   int
	CorpusName string
	RelPath    string // slash-separated path from the corpus root, e.g. "wch/1972.pgn"
	AbsPath    string
}

// Source identifies the file across corpora. Record ids are derived from it.
func (f ScannedFile) Source() string {
	return f.CorpusName + "/" + f.RelPath
}

// ScanAll walks every corpus and returns its .pgn files, corpus by corpus in lexical order.
// Hidden directories are skipped.
func (m *Manager) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	var files []ScannedFile

	for _, c := range m.corpora {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := filepath.WalkDir(c.RootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("failed to access path %s: %w", path, err)
			}
			if d.IsDir() {
				if path != c.RootPath && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".pgn") {
				return nil
			}

			relPath, err := filepath.Rel(c.RootPath, path)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
			}

			files = append(files, ScannedFile{
				CorpusID:   c.ID,
				CorpusName: c.Name,
				RelPath:    filepath.ToSlash(relPath),
				AbsPath:    path,
			})
			return nil
		})
		if err != nil {
			return files, fmt.Errorf("failed to scan corpus %s: %w", c.Name, err)
		}
	}

	return files, nil
}
