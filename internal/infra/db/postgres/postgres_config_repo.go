package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"media-insight/internal/domain"
	"media-insight/internal/domain/ports/repository"
)

var _ repository.SystemConfigRepository = (*systemConfigRepo)(nil)

type systemConfigRepo struct {
	pool *pgxpool.Pool
}

func NewSystemConfigRepo(pool *pgxpool.Pool) *systemConfigRepo {
	return &systemConfigRepo{pool: pool}
}

func (r *systemConfigRepo) Get(ctx context.Context, tx repository.Tx, key string) (string, error) {
	const q = `SELECT config_value FROM system_config WHERE config_key = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return "", err
	}
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return value, nil
}

func (r *systemConfigRepo) GetAll(ctx context.Context, tx repository.Tx) (map[string]string, error) {
	const q = `SELECT config_key, config_value FROM system_config ORDER BY config_key;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *systemConfigRepo) Set(ctx context.Context, tx repository.Tx, key, value string) error {
	const q = `
INSERT INTO system_config (config_key, config_value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (config_key) DO UPDATE
SET config_value = EXCLUDED.config_value, updated_at = now();`
	if _, err := execSQL(ctx, r.pool, tx, q, key, value); err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}
