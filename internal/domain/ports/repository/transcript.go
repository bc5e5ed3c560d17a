package repository

import (
	"context"

	"media-insight/internal/domain/model"
)

type TranscriptRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transcript) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transcript, error)
	FindLatestByMediaPath(ctx context.Context, tx Tx, mediaPath string) (*model.Transcript, error)
	ListMeta(ctx context.Context, tx Tx, limit, offset int) ([]model.TranscriptMeta, error)
	Count(ctx context.Context, tx Tx) (int, error)
	// Delete removes the transcript; summaries cascade at the schema level.
	Delete(ctx context.Context, tx Tx, id string) error
}

type SummaryRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Summary) error
	FindLatestByTranscript(ctx context.Context, tx Tx, transcriptID string) (*model.Summary, error)
}
