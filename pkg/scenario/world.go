package scenario

import (
	"context"
	"log/slog"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/world"
)

// Setup creates the scenario entities in an empty registry
func (s *Scenario) Setup(r *world.Registry) error {
	if !s.compiled {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	for _, e := range s.Entities {
		if _, err := r.Create(e.ID); err != nil {
			return goerr.Wrap(err, "failed to create scenario entity", goerr.V(model.EntityIDKey, e.ID))
		}
		for k, raw := range e.Properties {
			v, err := model.NewValue(raw)
			if err != nil {
				return goerr.Wrap(err, "invalid scenario property", goerr.V(model.EntityIDKey, e.ID), goerr.V(model.PropertyKey, k))
			}
			if err := r.SetProperty(e.ID, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyEffects applies every effect whose guard holds and returns the names
// of the applied effects. Targets holding a non-numeric value for an
// arithmetic effect are left unchanged.
func (s *Scenario) ApplyEffects(ctx context.Context, r *world.Registry) []string {
	var applied []string
	for i := range s.Effects {
		e := &s.Effects[i]
		if e.when != nil && !anyMatch(r, e.when) {
			continue
		}

		var targets []string
		for ent := range r.Entities(e.target) {
			targets = append(targets, ent.ID())
		}
		if len(targets) == 0 {
			continue
		}

		for _, id := range targets {
			if err := e.apply(r, id); err != nil {
				logging.From(ctx).Debug("effect skipped",
					slog.String("effect", e.Name),
					slog.String("entity", id),
					slog.Any("error", err),
				)
			}
		}
		applied = append(applied, e.Name)
	}
	return applied
}

func (e *Effect) apply(r *world.Registry, id string) error {
	switch e.op {
	case types.ModifyRemove:
		_, err := r.DeleteProperty(id, e.Property)
		return err
	case types.ModifySet:
		return r.SetProperty(id, e.Property, e.value)
	}

	current := 0.0
	if v, ok, err := r.GetProperty(id, e.Property); err != nil {
		return err
	} else if ok {
		n, isNum := v.AsNumber()
		if !isNum {
			return goerr.Wrap(model.ErrTypeMismatch, "property is not numeric",
				goerr.V(model.EntityIDKey, id), goerr.V(model.PropertyKey, e.Property))
		}
		current = n
	}

	next := current
	switch e.op {
	case types.ModifyAdd:
		next += e.value.Number
	case types.ModifySubtract:
		next -= e.value.Number
	case types.ModifyMultiply:
		next *= e.value.Number
	}
	if e.Min != nil {
		next = math.Max(next, *e.Min)
	}
	if e.Max != nil {
		next = math.Min(next, *e.Max)
	}
	return r.SetProperty(id, e.Property, model.Number(next))
}

// Terminal reports the first terminal condition that holds
func (s *Scenario) Terminal(r *world.Registry) (string, bool) {
	for _, t := range s.Terminals {
		if t.filter == nil {
			continue
		}
		matched := anyMatch(r, t.filter)
		if (t.Match == MatchNone) != matched {
			name := t.Name
			if name == "" {
				name = t.Condition
			}
			return name, true
		}
	}
	return "", false
}

func anyMatch(r *world.Registry, f world.Filter) bool {
	for range r.Entities(f) {
		return true
	}
	return false
}
