package world

import (
	"iter"
	"math"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// Registry owns the mutable world state of one game: entities, their
// properties and the directed relationships between them. It is not safe for
// concurrent use; the engine serializes every mutation.
type Registry struct {
	clock    *Clock
	entities map[string]*model.Entity
	order    []string
	edges    map[string]*model.Relationship
	outgoing map[string][]string
	revision uint64
}

// NewRegistry creates an empty registry stamped by clock
func NewRegistry(clock *Clock) *Registry {
	if clock == nil {
		clock = NewClock(1)
	}
	return &Registry{
		clock:    clock,
		entities: make(map[string]*model.Entity),
		edges:    make(map[string]*model.Relationship),
		outgoing: make(map[string][]string),
	}
}

// Clock returns the clock the registry stamps relationships with
func (r *Registry) Clock() *Clock {
	return r.clock
}

// Create adds a new entity with no properties
func (r *Registry) Create(id string) (*model.Entity, error) {
	if id == "" {
		return nil, goerr.Wrap(model.ErrInvalidOperation, "entity id is empty")
	}
	if _, ok := r.entities[id]; ok {
		return nil, goerr.Wrap(model.ErrDuplicateEntity, "cannot create entity", goerr.V(model.EntityIDKey, id))
	}
	e := model.NewEntity(id)
	r.entities[id] = e
	r.order = append(r.order, id)
	return e.Clone(), nil
}

// Has reports whether the entity exists
func (r *Registry) Has(id string) bool {
	_, ok := r.entities[id]
	return ok
}

// Get returns a copy of the entity
func (r *Registry) Get(id string) (*model.Entity, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

func (r *Registry) lookup(id string) (*model.Entity, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "entity not found", goerr.V(model.EntityIDKey, id))
	}
	return e, nil
}

// SetProperty stores a property value on an existing entity
func (r *Registry) SetProperty(id, key string, v model.Value) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if key == "" {
		return goerr.Wrap(model.ErrInvalidOperation, "property name is empty", goerr.V(model.EntityIDKey, id))
	}
	e.Set(key, v.Clone())
	return nil
}

// GetProperty returns a property value; ok is false when the property is absent
func (r *Registry) GetProperty(id, key string) (model.Value, bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Value{}, false, err
	}
	v, ok := e.Get(key)
	if !ok {
		return model.Value{}, false, nil
	}
	return v.Clone(), true, nil
}

// DeleteProperty removes a property and reports whether it existed
func (r *Registry) DeleteProperty(id, key string) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return e.Delete(key), nil
}

// IDs returns entity identifiers in creation order
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of entities
func (r *Registry) Len() int {
	return len(r.order)
}

// Entities returns a lazy sequence of entity copies in creation order that
// satisfy every filter. The sequence may be ranged over any number of times;
// each pass reflects the registry state at the time it is consumed.
func (r *Registry) Entities(filters ...Filter) iter.Seq[*model.Entity] {
	return func(yield func(*model.Entity) bool) {
		for i := 0; i < len(r.order); i++ {
			e := r.entities[r.order[i]]
			if !r.match(e, filters) {
				continue
			}
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

func (r *Registry) match(e *model.Entity, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f(r, e) {
			return false
		}
	}
	return true
}

// Connect creates or overwrites the directed edge a->b. Strength is clamped
// to [-1, 1] and the edge is stamped with the current simulated time.
func (r *Registry) Connect(a, b string, strength float64) (model.Relationship, error) {
	if a == b {
		return model.Relationship{}, goerr.Wrap(model.ErrInvalidRelationship, "entity cannot connect to itself", goerr.V(model.EntityIDKey, a))
	}
	if math.IsNaN(strength) {
		return model.Relationship{}, goerr.Wrap(model.ErrInvalidRelationship, "strength is not a number",
			goerr.V("source", a), goerr.V("target", b))
	}
	if _, err := r.lookup(a); err != nil {
		return model.Relationship{}, err
	}
	if _, err := r.lookup(b); err != nil {
		return model.Relationship{}, err
	}

	r.revision++
	rel := model.Relationship{
		Source:    a,
		Target:    b,
		Strength:  model.ClampStrength(strength),
		UpdatedAt: r.clock.Now(),
		Revision:  r.revision,
	}

	key := rel.Key()
	if _, exists := r.edges[key]; !exists {
		r.outgoing[a] = append(r.outgoing[a], b)
	}
	r.edges[key] = &rel
	return rel, nil
}

// Relationship returns the edge a->b if one exists
func (r *Registry) Relationship(a, b string) (model.Relationship, bool) {
	rel, ok := r.edges[a+"->"+b]
	if !ok {
		return model.Relationship{}, false
	}
	return *rel, true
}

// RelationshipsOf returns the outgoing edges of id, most recently updated first
func (r *Registry) RelationshipsOf(id string) []model.Relationship {
	targets := r.outgoing[id]
	out := make([]model.Relationship, 0, len(targets))
	for _, t := range targets {
		out = append(out, *r.edges[id+"->"+t])
	}
	sortByRecency(out)
	return out
}

// Relationships returns every edge, most recently updated first
func (r *Registry) Relationships() []model.Relationship {
	out := make([]model.Relationship, 0, len(r.edges))
	for _, rel := range r.edges {
		out = append(out, *rel)
	}
	sortByRecency(out)
	return out
}

func sortByRecency(rels []model.Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].UpdatedAt != rels[j].UpdatedAt {
			return rels[i].UpdatedAt > rels[j].UpdatedAt
		}
		return rels[i].Revision > rels[j].Revision
	})
}
