package vector

import (
	"fmt"

	"media-insight/internal/domain"
	"media-insight/internal/domain/ports/adapter"
)

// New selects the concrete backend once at startup. The closed set keeps
// callers from branching on backend names anywhere else.
func New(backend, baseURL, apiKey, collection string) (adapter.VectorStore, error) {
	switch backend {
	case "qdrant", "":
		return NewQdrantStore(baseURL, apiKey, collection)
	case "vikingdb":
		return NewVikingDBStore(baseURL, apiKey, collection)
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidArgument, backend)
	}
}
