package world

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// Filter is a predicate over entities. Filters receive the registry so they
// can inspect relationships.
type Filter func(r *Registry, e *model.Entity) bool

// HasProperty matches entities carrying the property
func HasProperty(name string) Filter {
	return func(_ *Registry, e *model.Entity) bool {
		_, ok := e.Get(name)
		return ok
	}
}

// PropertyEquals matches entities whose property equals v. Text comparison
// ignores case.
func PropertyEquals(name string, v model.Value) Filter {
	return func(_ *Registry, e *model.Entity) bool {
		got, ok := e.Get(name)
		return ok && valuesEqual(got, v)
	}
}

// IDIn matches entities whose identifier is one of ids
func IDIn(ids ...string) Filter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(_ *Registry, e *model.Entity) bool {
		_, ok := set[e.ID()]
		return ok
	}
}

// Keywords matches entities whose identifier, property names or text values
// contain any of the words, ignoring case.
func Keywords(words ...string) Filter {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	return func(_ *Registry, e *model.Entity) bool {
		haystack := []string{strings.ToLower(e.ID())}
		for _, name := range e.PropertyNames() {
			haystack = append(haystack, strings.ToLower(name))
			if v, _ := e.Get(name); v.Kind == types.ValueKindText {
				haystack = append(haystack, strings.ToLower(v.Text))
			}
		}
		for _, w := range lowered {
			for _, h := range haystack {
				if strings.Contains(h, w) {
					return true
				}
			}
		}
		return false
	}
}

// And matches entities satisfying every filter
func And(filters ...Filter) Filter {
	return func(r *Registry, e *model.Entity) bool {
		return r.match(e, filters)
	}
}

// relation matches entities with an outgoing edge to target whose strength
// satisfies cond
func relation(target string, cond func(float64) bool) Filter {
	return func(r *Registry, e *model.Entity) bool {
		rel, ok := r.Relationship(e.ID(), target)
		return ok && cond(rel.Strength)
	}
}

var (
	clauseSplitter = regexp.MustCompile(`(?i)\s+and\s+|\s*&&\s*`)
	comparison     = regexp.MustCompile(`^([A-Za-z_][\w.]*)\s*(>=|<=|!=|==|=|>|<)\s*(.+)$`)
)

// ParseFilter parses a filter expression. Clauses are joined with "and" or
// "&&":
//
//	has:supplies        property exists
//	status=active       property equals (also ==, !=)
//	supplies>=10        numeric comparison (>, <, >=, <=)
//	connected:RAVEN     outgoing edge to RAVEN
//	trusts:RAVEN        outgoing edge to RAVEN with positive strength
//	distrusts:RAVEN     outgoing edge to RAVEN with negative strength
//
// An empty expression, "all" or "*" matches every entity.
func ParseFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" || strings.EqualFold(expr, "all") {
		return func(*Registry, *model.Entity) bool { return true }, nil
	}

	var filters []Filter
	for _, clause := range clauseSplitter.Split(expr, -1) {
		f, err := parseClause(strings.TrimSpace(clause))
		if err != nil {
			return nil, goerr.Wrap(err, "invalid filter expression", goerr.V("expression", expr))
		}
		filters = append(filters, f)
	}
	return And(filters...), nil
}

func parseClause(clause string) (Filter, error) {
	if clause == "" {
		return nil, goerr.Wrap(model.ErrInvalidOperation, "empty filter clause")
	}

	if prefix, arg, ok := strings.Cut(clause, ":"); ok {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return nil, goerr.Wrap(model.ErrInvalidOperation, "filter clause has no argument", goerr.V("clause", clause))
		}
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case "has":
			return HasProperty(arg), nil
		case "connected":
			return relation(arg, func(float64) bool { return true }), nil
		case "trusts":
			return relation(arg, func(s float64) bool { return s > 0 }), nil
		case "distrusts":
			return relation(arg, func(s float64) bool { return s < 0 }), nil
		case "id":
			return IDIn(arg), nil
		}
	}

	m := comparison.FindStringSubmatch(clause)
	if m == nil {
		return nil, goerr.Wrap(model.ErrInvalidOperation, "unrecognized filter clause", goerr.V("clause", clause))
	}
	name, op, literal := m[1], m[2], parseLiteral(strings.TrimSpace(m[3]))

	switch op {
	case "=", "==":
		return PropertyEquals(name, literal), nil
	case "!=":
		eq := PropertyEquals(name, literal)
		return func(r *Registry, e *model.Entity) bool { return !eq(r, e) }, nil
	}

	bound, ok := literal.AsNumber()
	if !ok {
		return nil, goerr.Wrap(model.ErrTypeMismatch, "ordered comparison needs a number", goerr.V("clause", clause))
	}
	var cmp func(float64) bool
	switch op {
	case ">":
		cmp = func(x float64) bool { return x > bound }
	case "<":
		cmp = func(x float64) bool { return x < bound }
	case ">=":
		cmp = func(x float64) bool { return x >= bound }
	case "<=":
		cmp = func(x float64) bool { return x <= bound }
	}
	return func(_ *Registry, e *model.Entity) bool {
		v, exists := e.Get(name)
		if !exists {
			return false
		}
		x, ok := v.AsNumber()
		return ok && cmp(x)
	}, nil
}

func parseLiteral(s string) model.Value {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return model.Text(s[1 : len(s)-1])
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return model.Number(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return model.Bool(b)
	}
	return model.Text(s)
}

func valuesEqual(a, b model.Value) bool {
	if a.Kind == types.ValueKindText && b.Kind == types.ValueKindText {
		return strings.EqualFold(a.Text, b.Text)
	}
	return a.Equal(b)
}
