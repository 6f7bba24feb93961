package model

import (
	"sort"
	"strings"
)

// Entity is a named, schema-less record in the world state. The identifier
// is fixed at construction; properties may grow and shrink freely.
type Entity struct {
	id         string
	Properties map[string]Value
}

// NewEntity creates an entity with no properties
func NewEntity(id string) *Entity {
	return &Entity{
		id:         id,
		Properties: make(map[string]Value),
	}
}

// ID returns the immutable entity identifier
func (e *Entity) ID() string {
	return e.id
}

// Get returns a property value
func (e *Entity) Get(key string) (Value, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

// Set stores a property value
func (e *Entity) Set(key string, v Value) {
	if e.Properties == nil {
		e.Properties = make(map[string]Value)
	}
	e.Properties[key] = v
}

// Delete removes a property and reports whether it existed
func (e *Entity) Delete(key string) bool {
	if _, ok := e.Properties[key]; !ok {
		return false
	}
	delete(e.Properties, key)
	return true
}

// Number returns a numeric property, treating a missing property as zero.
// ok is false when the property exists with a non-numeric kind.
func (e *Entity) Number(key string) (float64, bool) {
	v, exists := e.Properties[key]
	if !exists {
		return 0, true
	}
	return v.AsNumber()
}

// Role returns the "role" property or "object" for entities without one
func (e *Entity) Role() string {
	if v, ok := e.Properties["role"]; ok {
		if s, ok := v.AsText(); ok && s != "" {
			return s
		}
	}
	return "object"
}

// PropertyNames returns property names in lexical order
func (e *Entity) PropertyNames() []string {
	names := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PublicProperties returns properties whose names do not start with "_"
func (e *Entity) PublicProperties() map[string]any {
	out := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v.Any()
	}
	return out
}

// AllProperties returns every property as plain Go values
func (e *Entity) AllProperties() map[string]any {
	out := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		out[k] = v.Any()
	}
	return out
}

// Clone returns a deep copy that shares nothing with the receiver
func (e *Entity) Clone() *Entity {
	c := NewEntity(e.id)
	for k, v := range e.Properties {
		c.Properties[k] = v.Clone()
	}
	return c
}
