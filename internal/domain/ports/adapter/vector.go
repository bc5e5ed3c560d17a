package adapter

import (
	"context"

	"media-insight/internal/domain/model"
)

// VectorPoint is one indexed chunk with its embedding and citation payload.
type VectorPoint struct {
	ID        string
	Vector    []float32
	Text      string
	Title     string
	MediaPath string
	MediaID   string
	Summary   string
	Language  string
	StartTime float64
	EndTime   float64
	SourceKind string
}

// SearchFilters are simple equality constraints on hit metadata fields.
type SearchFilters struct {
	Language   string
	MediaID    string
	SourceKind string
}

// VectorStore is the closed set of vector-index backends. The concrete variant
// is chosen once at startup from configuration and injected; there is no
// lazily-initialized shared client. Search returns hits already sorted
// descending by score.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, filters *SearchFilters) ([]model.SearchHit, error)
	Store(ctx context.Context, points []VectorPoint) error
	Delete(ctx context.Context, mediaID string) error
	List(ctx context.Context, limit, offset int) ([]model.SearchHit, error)
	Ping(ctx context.Context) error
}
