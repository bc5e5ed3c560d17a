package repository

import (
	"context"

	"media-insight/internal/domain/model"
)

// JobRepository persists pipeline jobs and implements the claim protocol.
type JobRepository interface {
	// Create inserts a new job in pending state.
	Create(ctx context.Context, tx Tx, job *model.Job) error

	// ClaimNext atomically takes the oldest pending job and marks it running,
	// skipping rows locked by concurrent claimers. When no pending job exists
	// it re-claims the oldest abandoned running job (finished_at unset and
	// started_at older than staleAfter), refreshing its claim timestamp.
	// Returns domain.ErrNotFound when nothing is claimable.
	ClaimNext(ctx context.Context) (*model.Job, error)

	// Checkpoint merges patch into the stored result under a row lock and
	// optionally advances status. Existing result fields are never removed.
	Checkpoint(ctx context.Context, jobID string, patch model.JobResult, status model.JobStatus) error

	FinishSuccess(ctx context.Context, jobID string, result model.JobResult) error
	FinishFailed(ctx context.Context, jobID string, errMsg string) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	List(ctx context.Context, tx Tx, status model.JobStatus, limit, offset int) ([]*model.Job, error)
}
