package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSink stores sealed records in a vault_records table.
type PostgresSink struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSink connects a pgx pool and ensures the vault table exists.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vault_records (
			id         TEXT PRIMARY KEY,
			record     BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure vault_records table: %w", err)
	}

	logger.Info("PostgreSQL vault sink connected")
	return &PostgresSink{db: pool, logger: logger}, nil
}

func (s *PostgresSink) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT record FROM vault_records WHERE id = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

func (s *PostgresSink) WriteBytes(ctx context.Context, key string, data []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vault_records (id, record)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM vault_records WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *PostgresSink) Close() {
	s.db.Close()
}
