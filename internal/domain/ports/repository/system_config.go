package repository

import "context"

// SystemConfigRepository is a key-value store for runtime tunables such as the
// chat system prompt. Get returns domain.ErrNotFound for absent keys; callers
// that need a value regardless fall back to built-in defaults.
type SystemConfigRepository interface {
	Get(ctx context.Context, tx Tx, key string) (string, error)
	GetAll(ctx context.Context, tx Tx) (map[string]string, error)
	Set(ctx context.Context, tx Tx, key, value string) error
}
