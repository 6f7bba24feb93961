package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// DefaultTopK is the number of hits returned when a search asks for none
const DefaultTopK = 5

// Store is the durable cross-game memory: an append-only log of events,
// patterns, relationship history and signals with similarity search.
// Every record carries a sequence number from a single counter, so recency
// is comparable across record kinds.
type Store struct {
	mu            sync.RWMutex
	embedder      interfaces.Embedder
	detector      *Detector
	now           func() time.Time
	events        []*model.MemoryEvent
	patterns      []*model.Pattern
	relationships []*model.RelationshipRecord
	signals       []*model.Signal
	gameEvents    map[model.GameID]int
	seq           uint64
}

// Option configures a Store
type Option func(*Store)

// WithDetector replaces the write-path pattern detector. nil disables it.
func WithDetector(d *Detector) Option {
	return func(s *Store) {
		s.detector = d
	}
}

// WithNow replaces the wall clock used for RecordedAt stamps
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store
func New(embedder interfaces.Embedder, opts ...Option) *Store {
	if embedder == nil {
		embedder = embedding.NewHash(0)
	}
	s := &Store{
		embedder:      embedder,
		detector:      NewDetector(),
		now:           func() time.Time { return time.Now().UTC() },
		events:        []*model.MemoryEvent{},
		patterns:      []*model.Pattern{},
		relationships: []*model.RelationshipRecord{},
		signals:       []*model.Signal{},
		gameEvents:    make(map[model.GameID]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) embed(ctx context.Context, text string) []float32 {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("failed to embed memory record, similarity search will skip it",
			slog.Any("error", err))
		return nil
	}
	return vec
}

// RecordEvent appends an immutable copy of ev, computing its embedding and
// content identifier. Pattern detection runs afterwards when due. The
// stored copy is returned.
func (s *Store) RecordEvent(ctx context.Context, ev *model.MemoryEvent) (*model.MemoryEvent, error) {
	if ev == nil {
		return nil, goerr.New("memory event is nil")
	}

	stored := ev.Clone()
	stored.Embedding = s.embed(ctx, stored.SearchableText())

	s.mu.Lock()
	s.seq++
	stored.Seq = s.seq
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = s.now()
	}
	stored.AssignID()
	s.events = append(s.events, stored)
	s.gameEvents[stored.GameID]++
	count := s.gameEvents[stored.GameID]

	var recent []*model.MemoryEvent
	if s.detector != nil && s.detector.Due(count) {
		recent = s.detector.Recent(s.gameEventsLocked(stored.GameID))
	}
	s.mu.Unlock()

	if recent != nil {
		if _, err := s.applyFindings(ctx, stored.GameID, s.detector.Scan(recent)); err != nil {
			return nil, err
		}
	}

	return stored.Clone(), nil
}

func (s *Store) gameEventsLocked(gameID model.GameID) []*model.MemoryEvent {
	var out []*model.MemoryEvent
	for _, ev := range s.events {
		if ev.GameID == gameID {
			out = append(out, ev)
		}
	}
	return out
}

// Detect runs the pattern detector over events and stores every new finding.
// A finding whose description and support already exist is skipped.
func (s *Store) Detect(ctx context.Context, gameID model.GameID, events []*model.MemoryEvent) ([]*model.Pattern, error) {
	if s.detector == nil || len(events) == 0 {
		return nil, nil
	}
	return s.applyFindings(ctx, gameID, s.detector.Scan(events))
}

func (s *Store) applyFindings(ctx context.Context, gameID model.GameID, findings []Finding) ([]*model.Pattern, error) {
	var created []*model.Pattern
	for _, f := range findings {
		if s.hasPattern(f.Description, f.Support) {
			continue
		}
		p, err := s.StorePattern(ctx, &model.Pattern{
			GameID:      gameID,
			Description: f.Description,
			Confidence:  f.Confidence,
			Support:     f.Support,
			Discoverer:  DetectorName,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to store detected pattern")
		}
		logging.From(ctx).Debug("pattern detected",
			slog.String("description", p.Description),
			slog.Int("support", len(p.Support)))
		created = append(created, p)
	}
	return created, nil
}

func (s *Store) hasPattern(description string, support []model.EventID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if p.Description == description && p.SameSupport(support) {
			return true
		}
	}
	return false
}

// StorePattern appends a new pattern. Re-asserting an existing description
// creates another pattern; history is never overwritten.
func (s *Store) StorePattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error) {
	if p == nil {
		return nil, goerr.New("pattern is nil")
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return nil, goerr.Wrap(model.ErrInvalidConfidence, "cannot store pattern", goerr.V("confidence", p.Confidence))
	}
	if strings.TrimSpace(p.Description) == "" {
		return nil, goerr.Wrap(model.ErrInvalidOperation, "pattern description is empty")
	}

	stored := p.Clone()
	stored.Embedding = s.embed(ctx, stored.SearchableText())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored.Seq = s.seq
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = s.now()
	}
	stored.AssignID()
	s.patterns = append(s.patterns, stored)
	return stored.Clone(), nil
}

// RecordRelationship appends an entry to the relationship history
func (s *Store) RecordRelationship(_ context.Context, gameID model.GameID, rel model.Relationship) *model.RelationshipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := &model.RelationshipRecord{
		Seq:        s.seq,
		GameID:     gameID,
		Source:     rel.Source,
		Target:     rel.Target,
		Strength:   rel.Strength,
		Time:       rel.UpdatedAt,
		RecordedAt: s.now(),
	}
	s.relationships = append(s.relationships, rec)
	c := *rec
	return &c
}

// RecordSignal appends a signal to the durable signal history
func (s *Store) RecordSignal(_ context.Context, sig *model.Signal) error {
	if sig == nil {
		return goerr.New("signal is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig.Clone())
	return nil
}

type scoredHit struct {
	hit *model.SearchHit
	seq uint64
}

func rank(hits []scoredHit, topK int) []*model.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Score != hits[j].hit.Score {
			return hits[i].hit.Score > hits[j].hit.Score
		}
		return hits[i].seq > hits[j].seq
	})
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > len(hits) {
		topK = len(hits)
	}
	out := make([]*model.SearchHit, topK)
	for i := 0; i < topK; i++ {
		out[i] = hits[i].hit
	}
	return out
}

func scopeOf(scope []types.MemoryType) (events, patterns bool) {
	if len(scope) == 0 {
		return true, true
	}
	for _, t := range scope {
		switch t {
		case types.MemoryTypeEvent:
			events = true
		case types.MemoryTypePattern:
			patterns = true
		}
	}
	return events, patterns
}

// SearchSimilar ranks events and patterns by cosine similarity to query,
// highest first, ties broken by recency. Records with zero or negative
// similarity are not returned. scope restricts the record kinds; no scope
// searches both.
func (s *Store) SearchSimilar(ctx context.Context, query string, topK int, scope ...types.MemoryType) ([]*model.SearchHit, error) {
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query", goerr.V("query", query))
	}
	withEvents, withPatterns := scopeOf(scope)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []scoredHit
	if withEvents {
		for _, ev := range s.events {
			if score := embedding.Cosine(qv, ev.Embedding); score > 0 {
				hits = append(hits, scoredHit{
					hit: &model.SearchHit{Type: types.MemoryTypeEvent, Event: ev.Clone(), Score: score},
					seq: ev.Seq,
				})
			}
		}
	}
	if withPatterns {
		for _, p := range s.patterns {
			if score := embedding.Cosine(qv, p.Embedding); score > 0 {
				hits = append(hits, scoredHit{
					hit: &model.SearchHit{Type: types.MemoryTypePattern, Pattern: p.Clone(), Score: score},
					seq: p.Seq,
				})
			}
		}
	}
	return rank(hits, topK), nil
}

// Search implements interfaces.MemoryQuerier. Events and patterns are ranked
// by similarity; an empty query returns the most recent records. Relationship
// history is matched by substring on the "source->target" key.
func (s *Store) Search(ctx context.Context, memType types.MemoryType, query string, limit int) ([]*model.SearchHit, error) {
	query = strings.TrimSpace(query)

	switch memType {
	case types.MemoryTypeRelationship:
		return s.searchRelationships(query, limit), nil
	case types.MemoryTypeEvent, types.MemoryTypePattern:
		if query == "" {
			return s.recent(memType, limit), nil
		}
		return s.SearchSimilar(ctx, query, limit, memType)
	default:
		return []*model.SearchHit{}, nil
	}
}

func (s *Store) searchRelationships(query string, limit int) []*model.SearchHit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var hits []scoredHit
	for _, rec := range s.relationships {
		if needle != "" && !strings.Contains(strings.ToLower(rec.Key()), needle) {
			continue
		}
		c := *rec
		hits = append(hits, scoredHit{
			hit: &model.SearchHit{Type: types.MemoryTypeRelationship, Relationship: &c, Score: 1},
			seq: rec.Seq,
		})
	}
	return rank(hits, limit)
}

func (s *Store) recent(memType types.MemoryType, limit int) []*model.SearchHit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []scoredHit
	switch memType {
	case types.MemoryTypeEvent:
		for _, ev := range s.events {
			hits = append(hits, scoredHit{hit: &model.SearchHit{Type: memType, Event: ev.Clone()}, seq: ev.Seq})
		}
	case types.MemoryTypePattern:
		for _, p := range s.patterns {
			hits = append(hits, scoredHit{hit: &model.SearchHit{Type: memType, Pattern: p.Clone()}, seq: p.Seq})
		}
	}
	return rank(hits, limit)
}

// Events returns copies of all events in recording order
func (s *Store) Events() []*model.MemoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.MemoryEvent, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Clone()
	}
	return out
}

// GameEvents returns copies of the events of one game in recording order
func (s *Store) GameEvents(gameID model.GameID) []*model.MemoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.MemoryEvent
	for _, ev := range s.gameEventsLocked(gameID) {
		out = append(out, ev.Clone())
	}
	return out
}

// EventsSince returns copies of the events of one game recorded after seq
func (s *Store) EventsSince(gameID model.GameID, seq uint64) []*model.MemoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.MemoryEvent
	for _, ev := range s.events {
		if ev.GameID == gameID && ev.Seq > seq {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// Patterns returns copies of all patterns in recording order
func (s *Store) Patterns() []*model.Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Pattern, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = p.Clone()
	}
	return out
}

// Relationships returns the relationship history in recording order
func (s *Store) Relationships() []*model.RelationshipRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.RelationshipRecord, len(s.relationships))
	for i, r := range s.relationships {
		c := *r
		out[i] = &c
	}
	return out
}

// Signals returns the signal history in emission order
func (s *Store) Signals() []*model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Signal, len(s.signals))
	for i, sig := range s.signals {
		out[i] = sig.Clone()
	}
	return out
}

// Seq returns the last assigned sequence number
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Stats counts the records held by a store
type Stats struct {
	Events        int
	Patterns      int
	Relationships int
	Signals       int
}

// Stats returns record counts
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Events:        len(s.events),
		Patterns:      len(s.patterns),
		Relationships: len(s.relationships),
		Signals:       len(s.signals),
	}
}
