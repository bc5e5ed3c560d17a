package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
	// recoverAfter is how stale a running claim must be before it is
	// considered abandoned and eligible for re-claim.
	recoverAfter time.Duration
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager, recoverAfter time.Duration) *jobRepo {
	if recoverAfter <= 0 {
		recoverAfter = 5 * time.Minute
	}
	return &jobRepo{pool: pool, tm: tm, recoverAfter: recoverAfter}
}

const jobColumns = `id, url, status, result, error, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
		result []byte
		errMsg *string
	)
	err := row.Scan(&j.ID, &j.URL, &status, &result, &errMsg, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.Error = *errMsg
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	return &j, nil
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO jobs (id, url, status, created_at)
VALUES ($1, $2, $3, $4);`
	_, err := execSQL(ctx, r.pool, tx, q, job.ID, job.URL, string(job.Status), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// ClaimNext takes the oldest pending job, skipping rows locked by concurrent
// claimers, and marks it running within the same transaction. When no pending
// row exists it re-claims the oldest abandoned running job (finished_at unset,
// claim timestamp older than recoverAfter) and refreshes started_at, so two
// workers cannot recover the same job at the same instant. Stage idempotence
// still guards the window where a slow original worker resumes later.
func (r *jobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const pendingQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, pendingQuery)
		if err != nil {
			return err
		}
		j, err := scanJob(row)
		if err == nil {
			now := time.Now()
			const mark = `UPDATE jobs SET status = 'running', started_at = $2 WHERE id = $1;`
			if _, err := execSQL(ctx, r.pool, tx, mark, j.ID, now); err != nil {
				return fmt.Errorf("mark running: %w", err)
			}
			j.Status = model.JobStatusRunning
			j.StartedAt = &now
			job = j
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		// No pending work: try to recover an abandoned running job.
		const abandonedQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'running' AND finished_at IS NULL AND started_at < $1
ORDER BY started_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err = pickRow(ctx, r.pool, tx, abandonedQuery, time.Now().Add(-r.recoverAfter))
		if err != nil {
			return err
		}
		j, err = scanJob(row)
		if err != nil {
			return err
		}
		now := time.Now()
		const refresh = `UPDATE jobs SET started_at = $2 WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, refresh, j.ID, now); err != nil {
			return fmt.Errorf("refresh claim: %w", err)
		}
		j.StartedAt = &now
		job = j
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

// Checkpoint merges patch into the stored result under a row lock. Fields
// accumulate; a checkpoint never removes anything a prior stage wrote.
func (r *jobRepo) Checkpoint(ctx context.Context, jobID string, patch model.JobResult, status model.JobStatus) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `SELECT result FROM jobs WHERE id = $1 FOR UPDATE;`
		row, err := pickRow(ctx, r.pool, tx, q, jobID)
		if err != nil {
			return err
		}
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}
		var current model.JobResult
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &current); err != nil {
				// Unreadable blob: start over from the patch rather than fail the stage.
				current = model.JobResult{}
			}
		}
		current.Merge(patch)

		merged, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("encode job result: %w", err)
		}
		if status != "" {
			const upd = `UPDATE jobs SET result = $2, status = $3 WHERE id = $1;`
			_, err = execSQL(ctx, r.pool, tx, upd, jobID, merged, string(status))
		} else {
			const upd = `UPDATE jobs SET result = $2 WHERE id = $1;`
			_, err = execSQL(ctx, r.pool, tx, upd, jobID, merged)
		}
		if err != nil {
			return fmt.Errorf("checkpoint job: %w", err)
		}
		return nil
	})
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID string, result model.JobResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	const q = `UPDATE jobs SET status = 'success', finished_at = now(), result = $2 WHERE id = $1;`
	if _, err := execSQL(ctx, r.pool, nil, q, jobID, encoded); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func (r *jobRepo) FinishFailed(ctx context.Context, jobID string, errMsg string) error {
	const q = `UPDATE jobs SET status = 'failed', finished_at = now(), error = $2 WHERE id = $1;`
	if _, err := execSQL(ctx, r.pool, nil, q, jobID, errMsg); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx, status model.JobStatus, limit, offset int) ([]*model.Job, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		const q = `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
		rows, err = queryRows(ctx, r.pool, tx, q, string(status), limit, offset)
	} else {
		const q = `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
		rows, err = queryRows(ctx, r.pool, tx, q, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
