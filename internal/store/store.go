// Package store defines snapshot persistence for the simulator.
// Implementations include PostgreSQL (source of truth for deployments),
// Redis (lightweight alternative), and in-memory (for testing).
//
// The engine owns all state in memory; persistence is whole-snapshot
// save/restore, not per-entity CRUD.
package store

import (
	"context"
	"errors"

	"github.com/papertrade/perp-engine/internal/model"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet.
var ErrNoSnapshot = errors.New("store: no snapshot")

// Store persists the engine's exportable state.
type Store interface {
	// SaveSnapshot durably replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, s *model.Snapshot) error

	// LoadSnapshot returns the stored snapshot, or ErrNoSnapshot.
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)
}
