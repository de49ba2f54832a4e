package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papertrade/perp-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL. The snapshot is kept as
// a single JSONB row per symbol; decimal values round-trip as JSON strings
// so no precision is lost.
type PostgresStore struct {
	pool   *pgxpool.Pool
	symbol string
}

// NewPostgresStore creates a PostgreSQL-backed store for one symbol.
func NewPostgresStore(pool *pgxpool.Pool, symbol string) *PostgresStore {
	return &PostgresStore{pool: pool, symbol: symbol}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS engine_snapshots (
			symbol     TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO engine_snapshots (symbol, data, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (symbol) DO UPDATE SET data = $2, updated_at = $3`,
		s.symbol, data, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.symbol, err)
	}
	return nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM engine_snapshots WHERE symbol = $1`, s.symbol).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.symbol, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", s.symbol, err)
	}
	return &snap, nil
}
