package interfaces

import (
	"context"

	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// MemoryRepository persists the full memory store as one snapshot
type MemoryRepository interface {
	// Load returns the stored snapshot, or nil without error when nothing
	// has been saved yet.
	Load(ctx context.Context) (*model.MemorySnapshot, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, snapshot *model.MemorySnapshot) error

	// Close releases backend resources
	Close() error
}

// MemoryQuerier is the read-only memory affordance offered to agents
type MemoryQuerier interface {
	// Search performs similarity search scoped by memory type
	Search(ctx context.Context, memoryType types.MemoryType, query string, limit int) ([]*model.SearchHit, error)
}
