package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// Repository keeps the memory snapshot in process. Saved snapshots are deep
// copied so later store mutations do not leak into them.
type Repository struct {
	mu    sync.RWMutex
	snap  *model.MemorySnapshot
	saves int
}

var _ interfaces.MemoryRepository = (*Repository)(nil)

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{}
}

func (r *Repository) Load(ctx context.Context) (*model.MemorySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snap == nil {
		return nil, nil
	}
	return copySnapshot(r.snap), nil
}

func (r *Repository) Save(ctx context.Context, snapshot *model.MemorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap = copySnapshot(snapshot)
	r.saves++
	return nil
}

// Saves returns how many times Save has been called
func (r *Repository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

func (r *Repository) Close() error {
	return nil
}

func copySnapshot(s *model.MemorySnapshot) *model.MemorySnapshot {
	if s == nil {
		return nil
	}
	copied := &model.MemorySnapshot{
		Version:       s.Version,
		SavedAt:       s.SavedAt,
		Events:        make([]*model.MemoryEvent, 0, len(s.Events)),
		Patterns:      make([]*model.Pattern, 0, len(s.Patterns)),
		Relationships: make([]*model.RelationshipRecord, 0, len(s.Relationships)),
		Signals:       make([]*model.Signal, 0, len(s.Signals)),
	}
	for _, e := range s.Events {
		copied.Events = append(copied.Events, e.Clone())
	}
	for _, p := range s.Patterns {
		copied.Patterns = append(copied.Patterns, p.Clone())
	}
	for _, rel := range s.Relationships {
		c := *rel
		copied.Relationships = append(copied.Relationships, &c)
	}
	for _, sig := range s.Signals {
		copied.Signals = append(copied.Signals, sig.Clone())
	}
	return copied
}
