package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/repository"
)

var _ repository.ChatHistoryRepository = (*chatHistoryRepo)(nil)

type chatHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewChatHistoryRepo(pool *pgxpool.Pool) *chatHistoryRepo {
	return &chatHistoryRepo{pool: pool}
}

func (r *chatHistoryRepo) Append(ctx context.Context, tx repository.Tx, turn *model.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	var metadata []byte
	if turn.Metadata != nil {
		var err error
		metadata, err = json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("encode turn metadata: %w", err)
		}
	}
	const q = `
INSERT INTO chat_history (session_id, role, content, metadata, created_at)
VALUES ($1, $2, $3, COALESCE($4, '{}'::jsonb), $5)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, turn.SessionID, turn.Role, turn.Content, metadata, turn.CreatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&turn.ID); err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

// GetHistory returns the most recent limit turns, oldest first. The inner
// query selects the window from the tail, the outer one restores ascending
// order for prompt assembly.
func (r *chatHistoryRepo) GetHistory(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]model.ChatTurn, error) {
	const q = `
SELECT id, session_id, role, content, metadata, created_at
FROM (
    SELECT id, session_id, role, content, metadata, created_at
    FROM chat_history
    WHERE session_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2
) tail
ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatTurn
	for rows.Next() {
		var (
			t        model.ChatTurn
			metadata []byte
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &metadata, &t.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode turn metadata: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *chatHistoryRepo) DeleteSession(ctx context.Context, tx repository.Tx, sessionID string) error {
	const q = `DELETE FROM chat_history WHERE session_id = $1;`
	if _, err := execSQL(ctx, r.pool, tx, q, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
