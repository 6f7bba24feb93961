package memory

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// Snapshot returns a deep copy of the store contents in persisted form
func (s *Store) Snapshot() *model.MemorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.MemorySnapshot{
		Version:       model.SnapshotVersion,
		SavedAt:       s.now(),
		Events:        make([]*model.MemoryEvent, len(s.events)),
		Patterns:      make([]*model.Pattern, len(s.patterns)),
		Relationships: make([]*model.RelationshipRecord, len(s.relationships)),
		Signals:       make([]*model.Signal, len(s.signals)),
	}
	for i, ev := range s.events {
		snap.Events[i] = ev.Clone()
	}
	for i, p := range s.patterns {
		snap.Patterns[i] = p.Clone()
	}
	for i, r := range s.relationships {
		c := *r
		snap.Relationships[i] = &c
	}
	for i, sig := range s.signals {
		snap.Signals[i] = sig.Clone()
	}
	return snap
}

// Restore replaces the store contents with snap, preserving record order.
// Records whose embedding does not match the active embedder's dimension
// are re-embedded from their text.
func (s *Store) Restore(ctx context.Context, snap *model.MemorySnapshot) int {
	if snap == nil {
		snap = &model.MemorySnapshot{}
	}
	snap.Normalize()
	dim := s.embedder.Dimension()

	events := make([]*model.MemoryEvent, 0, len(snap.Events))
	patterns := make([]*model.Pattern, 0, len(snap.Patterns))
	relationships := make([]*model.RelationshipRecord, 0, len(snap.Relationships))
	signals := make([]*model.Signal, 0, len(snap.Signals))
	gameEvents := make(map[model.GameID]int)
	var maxSeq uint64
	reembedded := 0

	for _, ev := range snap.Events {
		if ev == nil {
			continue
		}
		c := ev.Clone()
		if len(c.Embedding) != dim {
			c.Embedding = s.embed(ctx, c.SearchableText())
			reembedded++
		}
		if c.ID == "" {
			c.AssignID()
		}
		events = append(events, c)
		gameEvents[c.GameID]++
		maxSeq = max(maxSeq, c.Seq)
	}
	for _, p := range snap.Patterns {
		if p == nil {
			continue
		}
		c := p.Clone()
		if len(c.Embedding) != dim {
			c.Embedding = s.embed(ctx, c.SearchableText())
			reembedded++
		}
		if c.ID == "" {
			c.AssignID()
		}
		patterns = append(patterns, c)
		maxSeq = max(maxSeq, c.Seq)
	}
	for _, r := range snap.Relationships {
		if r == nil {
			continue
		}
		c := *r
		relationships = append(relationships, &c)
		maxSeq = max(maxSeq, c.Seq)
	}
	for _, sig := range snap.Signals {
		if sig == nil {
			continue
		}
		signals = append(signals, sig.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	s.patterns = patterns
	s.relationships = relationships
	s.signals = signals
	s.gameEvents = gameEvents
	s.seq = maxSeq
	return reembedded
}

// Load builds a store from repo. A missing or unreadable memory never fails
// the run: the error is logged and an empty store is returned.
func Load(ctx context.Context, repo interfaces.MemoryRepository, embedder interfaces.Embedder, opts ...Option) *Store {
	s := New(embedder, opts...)
	if repo == nil {
		return s
	}

	snap, err := repo.Load(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to load memory, starting with an empty store", slog.Any("error", err))
		return s
	}
	if snap == nil {
		return s
	}

	reembedded := s.Restore(ctx, snap)
	stats := s.Stats()
	logging.From(ctx).Info("memory loaded",
		slog.Int("events", stats.Events),
		slog.Int("patterns", stats.Patterns),
		slog.Int("relationships", stats.Relationships),
		slog.Int("signals", stats.Signals),
		slog.Int("reembedded", reembedded),
	)
	return s
}

// Save persists the store contents to repo
func (s *Store) Save(ctx context.Context, repo interfaces.MemoryRepository) error {
	if repo == nil {
		return goerr.New("memory repository is not configured")
	}
	snap := s.Snapshot()
	if err := repo.Save(ctx, snap); err != nil {
		return goerr.Wrap(err, "failed to save memory",
			goerr.V("events", len(snap.Events)),
			goerr.V("patterns", len(snap.Patterns)))
	}
	return nil
}
