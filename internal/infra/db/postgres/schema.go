package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		result JSONB NOT NULL DEFAULT '{}'::jsonb,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);`,

	`CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		media_path TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		segments JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_media_path ON transcripts (media_path);`,

	`CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
		entries JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_transcript_id ON summaries (transcript_id);`,

	`CREATE TABLE IF NOT EXISTS chat_history (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history (session_id, created_at);`,

	`CREATE TABLE IF NOT EXISTS system_config (
		config_key TEXT PRIMARY KEY,
		config_value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,

	`INSERT INTO system_config (config_key, config_value) VALUES
		('system_prompt', 'You are an assistant that answers questions about transcribed media content. Answer using only the provided context and cite the sources you used.'),
		('site_title', 'Media Insight')
	ON CONFLICT (config_key) DO NOTHING;`,
}

// InitSchema creates the tables, indexes and default config rows the service
// needs. Every statement is idempotent, so it is safe to run on each start.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
