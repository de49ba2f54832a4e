package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/papertrade/perp-engine/internal/model"
)

// RedisStore implements Store using a single Redis key per symbol. Suited
// to deployments that want restart survival without running PostgreSQL.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a Redis-backed store for one symbol.
func NewRedisStore(rdb *redis.Client, symbol string) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		key: "papertrade:snapshot:" + symbol,
	}
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.key, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", s.key, err)
	}
	return &snap, nil
}
