package repository

import (
	"context"

	"media-insight/internal/domain/model"
)

// ChatHistoryRepository is an append-only per-session transcript store.
// Turns for a session are totally ordered by creation time.
type ChatHistoryRepository interface {
	Append(ctx context.Context, tx Tx, turn *model.ChatTurn) error
	// GetHistory returns up to limit turns in ascending time order.
	GetHistory(ctx context.Context, tx Tx, sessionID string, limit int) ([]model.ChatTurn, error)
	// DeleteSession removes every turn of one session.
	DeleteSession(ctx context.Context, tx Tx, sessionID string) error
}
