package adapter

import (
	"context"

	"media-insight/internal/domain/model"
)

// MediaFetcher downloads a source locator into the shared media directory.
// Fetch must be idempotent: when the artifact for url already exists locally
// it returns the existing path without re-downloading.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (localPath string, err error)
}

// Transcriber is the black-box speech recognition service. It returns
// sentence-level segments with timestamps in seconds.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) ([]model.Segment, error)
}
