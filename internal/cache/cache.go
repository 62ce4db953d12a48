// Package cache holds the last relationship snapshot between dashboard runs.
// Snapshots never expire; only an explicit Clear removes them.
package cache

import (
	"context"
	"sync"

	"github.com/sydialogue/dashboard/internal/models"
)

// Key is the single slot relationship snapshots are stored under.
const Key = "relationships:last"

type Cache interface {
	// Get returns the stored snapshot. ok is false when nothing is stored.
	Get(ctx context.Context) (snap *models.Snapshot, ok bool, err error)
	// Set replaces the stored snapshot. Concurrent writers: last write wins.
	Set(ctx context.Context, snap models.Snapshot) error
	Clear(ctx context.Context) error
}

// Memory keeps the snapshot in process memory.
type Memory struct {
	mu   sync.RWMutex
	snap *models.Snapshot
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context) (*models.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snap == nil {
		return nil, false, nil
	}
	snap := *m.snap
	return &snap, true, nil
}

func (m *Memory) Set(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = &snap
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = nil
	return nil
}
