package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks chessrag/internal/vectorstore VectorStore

import (
	"context"

	"github.com/google/uuid"
)

// pointNamespace scopes point UUIDs derived from chunk ids.
var pointNamespace = uuid.MustParse("7f1c9a52-3d0e-4f8b-9a61-2c5e8b4d7a90")

// Point represents a vector point with metadata.
// Meta values must be strings, numbers, bools, []any or map[string]any.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}

// PointID derives the point UUID of a chunk. The same chunk id always maps to the
// same point, so re-indexing a game overwrites its points in place.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}
