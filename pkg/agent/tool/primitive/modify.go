package primitive

import (
	"context"
	"fmt"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

type modifyTool struct {
	x *Executor
}

func (t *modifyTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolModify),
		Description: "Change a property of an entity. Operations: set, add, subtract, multiply (numeric), append (list), remove (delete the property), create (create a new entity carrying the property).",
		Parameters: map[string]*gollem.Parameter{
			"entity": {
				Type:        gollem.TypeString,
				Description: "Entity ID",
				Required:    true,
			},
			"property": {
				Type:        gollem.TypeString,
				Description: "Property name",
				Required:    true,
			},
			"operation": {
				Type:        gollem.TypeString,
				Description: "One of: set, add, subtract, multiply, append, remove, create",
				Required:    true,
			},
			"value": {
				Type:        gollem.TypeString,
				Description: "Operand. Numbers for arithmetic operations; any value for set, append and create.",
			},
		},
	}
}

func (t *modifyTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := requireString(args, "entity")
	if err != nil {
		return nil, err
	}
	rawOp, err := requireString(args, "operation")
	if err != nil {
		return nil, err
	}
	op, err := types.ParseModifyOperation(rawOp)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidOperation, err.Error(), goerr.V(model.OperationKey, rawOp))
	}
	property, hasProperty := stringArg(args, "property")
	if !hasProperty && op != types.ModifyCreate {
		return nil, missing("property")
	}

	if op == types.ModifyCreate {
		return t.create(ctx, id, property, args)
	}

	entity, err := t.x.registry.Get(id)
	if err != nil {
		return nil, err
	}
	old, existed := entity.Get(property)

	var next model.Value
	switch op {
	case types.ModifyRemove:
		if _, err := t.x.registry.DeleteProperty(id, property); err != nil {
			return nil, err
		}
		tool.Update(ctx, fmt.Sprintf("Removed %s.%s", id, property))
		return map[string]any{
			"entity":    id,
			"property":  property,
			"operation": string(op),
			"old_value": old.Any(),
			"removed":   existed,
		}, nil

	case types.ModifySet:
		v, ok, err := valueArg(args, "value")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missing("value")
		}
		next = v

	case types.ModifyAdd, types.ModifySubtract, types.ModifyMultiply:
		operand, err := requireNumber(args, "value")
		if err != nil {
			return nil, err
		}
		current, ok := entity.Number(property)
		if !ok {
			return nil, goerr.Wrap(model.ErrTypeMismatch, "property is not numeric",
				goerr.V(model.EntityIDKey, id), goerr.V(model.PropertyKey, property), goerr.V(model.OperationKey, op))
		}
		var result float64
		switch op {
		case types.ModifyAdd:
			result = current + operand
		case types.ModifySubtract:
			result = current - operand
		case types.ModifyMultiply:
			result = current * operand
		}
		if math.IsInf(result, 0) || math.IsNaN(result) {
			return nil, goerr.Wrap(model.ErrInvalidOperation, "result is not a finite number",
				goerr.V(model.EntityIDKey, id), goerr.V(model.PropertyKey, property))
		}
		next = model.Number(result)

	case types.ModifyAppend:
		v, ok, err := valueArg(args, "value")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missing("value")
		}
		switch {
		case !existed:
			next = model.List(v)
		case old.IsList():
			items := append(old.Clone().Items, listItems(v)...)
			next = model.List(items...)
		default:
			return nil, goerr.Wrap(model.ErrTypeMismatch, "property is not a list",
				goerr.V(model.EntityIDKey, id), goerr.V(model.PropertyKey, property))
		}
	}

	if err := t.x.registry.SetProperty(id, property, next); err != nil {
		return nil, err
	}
	tool.Update(ctx, fmt.Sprintf("Modified %s.%s (%s)", id, property, op))

	return map[string]any{
		"entity":    id,
		"property":  property,
		"operation": string(op),
		"old_value": old.Any(),
		"new_value": next.Any(),
	}, nil
}

func listItems(v model.Value) []model.Value {
	if v.IsList() {
		return v.Clone().Items
	}
	return []model.Value{v}
}

func (t *modifyTool) create(ctx context.Context, id, property string, args map[string]any) (map[string]any, error) {
	var value model.Value
	if property != "" {
		v, ok, err := valueArg(args, "value")
		if err != nil {
			return nil, err
		}
		if !ok {
			v = model.Bool(true)
		}
		value = v
	}

	if _, err := t.x.registry.Create(id); err != nil {
		return nil, err
	}
	if property != "" {
		if err := t.x.registry.SetProperty(id, property, value); err != nil {
			return nil, err
		}
	}
	if creator := tool.Actor(ctx); creator != "" {
		if err := t.x.registry.SetProperty(id, "_creator", model.Text(creator)); err != nil {
			return nil, err
		}
	}
	tool.Update(ctx, fmt.Sprintf("Created entity %s", id))

	return map[string]any{
		"entity":    id,
		"property":  property,
		"operation": string(types.ModifyCreate),
		"new_value": value.Any(),
		"created":   true,
	}, nil
}
