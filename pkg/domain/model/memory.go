package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// LLMEmbeddingDimension is the dimension requested from LLM embedding
// providers. Gemini text-embedding-004 uses 768 dimensions.
const LLMEmbeddingDimension = 768

// SnapshotVersion is the current persisted memory format version
const SnapshotVersion = 1

// memoryNamespace scopes content-derived identifiers so that the same record
// gets the same ID in every process.
var memoryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/secmon-lab/stratagem/memory"))

// GameID identifies one game (session)
type GameID string

// NewGameID generates a new UUID v4 GameID
func NewGameID() GameID {
	return GameID(uuid.New().String())
}

// EventID is a stable content identifier of a MemoryEvent
type EventID string

// PatternID is a stable content identifier of a Pattern
type PatternID string

func contentID(kind string, parts ...any) string {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, p := range parts {
		sb.WriteString("\x1f")
		if raw, err := json.Marshal(p); err == nil {
			sb.Write(raw)
		} else {
			fmt.Fprintf(&sb, "%v", p)
		}
	}
	return uuid.NewSHA1(memoryNamespace, []byte(sb.String())).String()
}

// MemoryEvent is the immutable record of one primitive-tool invocation
type MemoryEvent struct {
	ID         EventID           `json:"id"`
	Seq        uint64            `json:"seq"`
	GameID     GameID            `json:"game_id"`
	Round      int               `json:"round"`
	Time       float64           `json:"time"`
	RecordedAt time.Time         `json:"recorded_at"`
	Actor      string            `json:"actor"`
	Tool       string            `json:"tool"`
	Arguments  map[string]Value  `json:"arguments,omitempty"`
	Success    bool              `json:"success"`
	Failure    types.FailureKind `json:"failure,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Outcome    Value             `json:"outcome"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Embedding  []float32         `json:"embedding,omitempty"`
}

// AssignID derives the content identifier of the event from its content
func (e *MemoryEvent) AssignID() {
	e.ID = EventID(contentID("event", e.Seq, e.GameID, e.Round, e.Time, e.Actor, e.Tool, e.Arguments, e.Success, e.Failure, e.Outcome))
}

// ToolName returns the parsed tool name; ok is false for malformed actions
func (e *MemoryEvent) ToolName() (types.ToolName, bool) {
	name := types.ToolName(e.Tool)
	return name, name.IsValid()
}

// SearchableText is the text the similarity embedding is computed from
func (e *MemoryEvent) SearchableText() string {
	var sb strings.Builder
	sb.WriteString(e.Actor)
	sb.WriteString(" ")
	sb.WriteString(e.Tool)
	keys := make([]string, 0, len(e.Arguments))
	for k := range e.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString(" ")
		sb.WriteString(e.Arguments[k].String())
	}
	if e.Success {
		sb.WriteString(" success")
	} else {
		sb.WriteString(" failed ")
		sb.WriteString(string(e.Failure))
		sb.WriteString(" ")
		sb.WriteString(e.Reason)
	}
	if !e.Outcome.IsZero() {
		sb.WriteString(" ")
		sb.WriteString(e.Outcome.String())
	}
	if e.Reasoning != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Reasoning)
	}
	return sb.String()
}

// Clone returns a deep copy of the event
func (e *MemoryEvent) Clone() *MemoryEvent {
	c := *e
	if e.Arguments != nil {
		c.Arguments = make(map[string]Value, len(e.Arguments))
		for k, v := range e.Arguments {
			c.Arguments[k] = v.Clone()
		}
	}
	c.Outcome = e.Outcome.Clone()
	if e.Embedding != nil {
		c.Embedding = make([]float32, len(e.Embedding))
		copy(c.Embedding, e.Embedding)
	}
	return &c
}

// Pattern is a derived, confidence-scored summary of recurring behavior
type Pattern struct {
	ID          PatternID `json:"id"`
	Seq         uint64    `json:"seq"`
	GameID      GameID    `json:"game_id,omitempty"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Support     []EventID `json:"support,omitempty"`
	Discoverer  string    `json:"discoverer"`
	RecordedAt  time.Time `json:"recorded_at"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// AssignID derives the content identifier of the pattern from its content
func (p *Pattern) AssignID() {
	p.ID = PatternID(contentID("pattern", p.Seq, p.GameID, p.Description, p.Confidence, p.Support, p.Discoverer))
}

// SearchableText is the text the similarity embedding is computed from
func (p *Pattern) SearchableText() string {
	return p.Description
}

// SameSupport reports whether both patterns cite exactly the same events
func (p *Pattern) SameSupport(support []EventID) bool {
	if len(p.Support) != len(support) {
		return false
	}
	for i := range support {
		if p.Support[i] != support[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the pattern
func (p *Pattern) Clone() *Pattern {
	c := *p
	if p.Support != nil {
		c.Support = make([]EventID, len(p.Support))
		copy(c.Support, p.Support)
	}
	if p.Embedding != nil {
		c.Embedding = make([]float32, len(p.Embedding))
		copy(c.Embedding, p.Embedding)
	}
	return &c
}

// RelationshipRecord is one entry of the cross-game relationship history
type RelationshipRecord struct {
	Seq        uint64    `json:"seq"`
	GameID     GameID    `json:"game_id"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Strength   float64   `json:"strength"`
	Time       float64   `json:"time"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Key returns the "source->target" key of the edge
func (r *RelationshipRecord) Key() string {
	return r.Source + "->" + r.Target
}

// SearchHit is one ranked result of a memory search
type SearchHit struct {
	Type         types.MemoryType    `json:"type"`
	Event        *MemoryEvent        `json:"event,omitempty"`
	Pattern      *Pattern            `json:"pattern,omitempty"`
	Relationship *RelationshipRecord `json:"relationship,omitempty"`
	Score        float64             `json:"score"`
}

// Seq returns the store sequence of the hit, used for recency ordering
func (h *SearchHit) Seq() uint64 {
	switch {
	case h.Event != nil:
		return h.Event.Seq
	case h.Pattern != nil:
		return h.Pattern.Seq
	case h.Relationship != nil:
		return h.Relationship.Seq
	default:
		return 0
	}
}

// Map renders the hit for tool payloads. Embeddings are omitted.
func (h *SearchHit) Map() map[string]any {
	out := map[string]any{
		"type":  string(h.Type),
		"score": h.Score,
	}
	switch {
	case h.Event != nil:
		out["id"] = string(h.Event.ID)
		out["actor"] = h.Event.Actor
		out["tool"] = h.Event.Tool
		out["success"] = h.Event.Success
		args := make(map[string]any, len(h.Event.Arguments))
		for k, v := range h.Event.Arguments {
			args[k] = v.Any()
		}
		out["arguments"] = args
		if h.Event.Failure != types.FailureNone {
			out["failure"] = string(h.Event.Failure)
		}
	case h.Pattern != nil:
		out["id"] = string(h.Pattern.ID)
		out["description"] = h.Pattern.Description
		out["confidence"] = h.Pattern.Confidence
		out["discoverer"] = h.Pattern.Discoverer
	case h.Relationship != nil:
		out["key"] = h.Relationship.Key()
		out["strength"] = h.Relationship.Strength
	}
	return out
}

// MemorySnapshot is the persisted form of the memory store. Fields added in
// later versions must decode as empty from older files.
type MemorySnapshot struct {
	Version       int                   `json:"version"`
	SavedAt       time.Time             `json:"saved_at"`
	Events        []*MemoryEvent        `json:"events"`
	Patterns      []*Pattern            `json:"patterns"`
	Relationships []*RelationshipRecord `json:"relationships"`
	Signals       []*Signal             `json:"signals"`
}

// Normalize replaces nil collections with empty ones after decoding
func (s *MemorySnapshot) Normalize() {
	if s.Events == nil {
		s.Events = []*MemoryEvent{}
	}
	if s.Patterns == nil {
		s.Patterns = []*Pattern{}
	}
	if s.Relationships == nil {
		s.Relationships = []*RelationshipRecord{}
	}
	if s.Signals == nil {
		s.Signals = []*Signal{}
	}
}

// SignalID derives a stable identifier for a signal
func SignalID(gameID GameID, origin string, seq uint64, emittedAt float64) string {
	return contentID("signal", gameID, origin, seq, emittedAt)
}
