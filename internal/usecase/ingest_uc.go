// File: internal/usecase/ingest_uc.go
package usecase

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/domain/ports/repository"
	"media-insight/internal/infra/logging"
)

// Compile-time check
var _ IngestUseCase = (*ingestUC)(nil)

type IngestUseCase interface {
	SubmitJob(ctx context.Context, mediaURL string) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, status model.JobStatus, limit, offset int) ([]*model.Job, error)

	GetTranscript(ctx context.Context, id string) (*model.Transcript, error)
	ListTranscripts(ctx context.Context, limit, offset int) ([]model.TranscriptMeta, error)
	DeleteTranscript(ctx context.Context, id string) error

	GetSummary(ctx context.Context, transcriptID string) (*model.Summary, error)
}

type ingestUC struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	summaries   repository.SummaryRepository
	vectors     adapter.VectorStore
	mediaIDFn   func(mediaPath string) string
	log         *zerolog.Logger
}

func NewIngestUseCase(
	jobs repository.JobRepository,
	transcripts repository.TranscriptRepository,
	summaries repository.SummaryRepository,
	vectors adapter.VectorStore,
	mediaIDFn func(mediaPath string) string,
	log *zerolog.Logger,
) *ingestUC {
	return &ingestUC{
		jobs:        jobs,
		transcripts: transcripts,
		summaries:   summaries,
		vectors:     vectors,
		mediaIDFn:   mediaIDFn,
		log:         log,
	}
}

func (u *ingestUC) SubmitJob(ctx context.Context, mediaURL string) (*model.Job, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	parsed, err := url.Parse(mediaURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, domain.ErrInvalidArgument
	}

	job := model.NewJob(uuid.NewString(), mediaURL)
	if err := u.jobs.Create(ctx, nil, job); err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("job_id", job.ID).Str("url", mediaURL).Msg("job submitted")
	return job, nil
}

func (u *ingestUC) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.jobs.FindByID(ctx, nil, id)
}

func (u *ingestUC) ListJobs(ctx context.Context, status model.JobStatus, limit, offset int) ([]*model.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.jobs.List(ctx, nil, status, limit, offset)
}

func (u *ingestUC) GetTranscript(ctx context.Context, id string) (*model.Transcript, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.transcripts.FindByID(ctx, nil, id)
}

func (u *ingestUC) ListTranscripts(ctx context.Context, limit, offset int) ([]model.TranscriptMeta, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.transcripts.ListMeta(ctx, nil, limit, offset)
}

// DeleteTranscript removes the transcript row (summaries cascade) and makes a
// best-effort attempt to drop the media's vector points.
func (u *ingestUC) DeleteTranscript(ctx context.Context, id string) error {
	tr, err := u.transcripts.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if err := u.transcripts.Delete(ctx, nil, id); err != nil {
		return err
	}
	if u.vectors != nil && u.mediaIDFn != nil && tr.MediaPath != "" {
		if err := u.vectors.Delete(ctx, u.mediaIDFn(tr.MediaPath)); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Str("transcript_id", id).Msg("vector cleanup failed")
		}
	}
	return nil
}

func (u *ingestUC) GetSummary(ctx context.Context, transcriptID string) (*model.Summary, error) {
	if transcriptID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.summaries.FindLatestByTranscript(ctx, nil, transcriptID)
}
