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

var (
	_ repository.TranscriptRepository = (*transcriptRepo)(nil)
	_ repository.SummaryRepository    = (*summaryRepo)(nil)
)

type transcriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *transcriptRepo {
	return &transcriptRepo{pool: pool}
}

func (r *transcriptRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	const q = `
INSERT INTO transcripts (id, media_path, title, language, segments, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET media_path = EXCLUDED.media_path,
    title      = EXCLUDED.title,
    language   = EXCLUDED.language,
    segments   = EXCLUDED.segments;`
	if _, err := execSQL(ctx, r.pool, tx, q, t.ID, t.MediaPath, t.Title, t.Language, segments, t.CreatedAt); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func scanTranscript(row pgx.Row) (*model.Transcript, error) {
	var (
		t        model.Transcript
		segments []byte
	)
	err := row.Scan(&t.ID, &t.MediaPath, &t.Title, &t.Language, &segments, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &t.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	}
	return &t, nil
}

func (r *transcriptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transcript, error) {
	const q = `SELECT id, media_path, title, language, segments, created_at FROM transcripts WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTranscript(row)
}

func (r *transcriptRepo) FindLatestByMediaPath(ctx context.Context, tx repository.Tx, mediaPath string) (*model.Transcript, error) {
	const q = `
SELECT id, media_path, title, language, segments, created_at
FROM transcripts
WHERE media_path = $1
ORDER BY created_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, mediaPath)
	if err != nil {
		return nil, err
	}
	return scanTranscript(row)
}

func (r *transcriptRepo) ListMeta(ctx context.Context, tx repository.Tx, limit, offset int) ([]model.TranscriptMeta, error) {
	const q = `
SELECT id, media_path, title, language, jsonb_array_length(segments), created_at
FROM transcripts
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TranscriptMeta
	for rows.Next() {
		var m model.TranscriptMeta
		if err := rows.Scan(&m.ID, &m.MediaPath, &m.Title, &m.Language, &m.SegmentCount, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *transcriptRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `SELECT count(*) FROM transcripts;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *transcriptRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM transcripts WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type summaryRepo struct {
	pool *pgxpool.Pool
}

func NewSummaryRepo(pool *pgxpool.Pool) *summaryRepo {
	return &summaryRepo{pool: pool}
}

func (r *summaryRepo) Save(ctx context.Context, tx repository.Tx, s *model.Summary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	entries, err := json.Marshal(s.Entries)
	if err != nil {
		return fmt.Errorf("encode summary entries: %w", err)
	}
	const q = `
INSERT INTO summaries (id, transcript_id, entries, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET entries = EXCLUDED.entries;`
	if _, err := execSQL(ctx, r.pool, tx, q, s.ID, s.TranscriptID, entries, s.CreatedAt); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (r *summaryRepo) FindLatestByTranscript(ctx context.Context, tx repository.Tx, transcriptID string) (*model.Summary, error) {
	const q = `
SELECT id, transcript_id, entries, created_at
FROM summaries
WHERE transcript_id = $1
ORDER BY created_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, transcriptID)
	if err != nil {
		return nil, err
	}
	var (
		s       model.Summary
		entries []byte
	)
	if err := row.Scan(&s.ID, &s.TranscriptID, &entries, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &s.Entries); err != nil {
			return nil, fmt.Errorf("decode summary entries: %w", err)
		}
	}
	return &s, nil
}
