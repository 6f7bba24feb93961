package primitive

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

type transferTool struct {
	x *Executor
}

func (t *transferTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolTransfer),
		Description: `Move a numeric quantity of a property from one entity to another. The total is conserved. Amount may be "all".`,
		Parameters: map[string]*gollem.Parameter{
			"property": {
				Type:        gollem.TypeString,
				Description: "Name of the numeric property to move, e.g. supplies",
				Required:    true,
			},
			"from": {
				Type:        gollem.TypeString,
				Description: "Source entity ID (default: yourself)",
			},
			"to": {
				Type:        gollem.TypeString,
				Description: "Destination entity ID",
				Required:    true,
			},
			"amount": {
				Type:        gollem.TypeString,
				Description: `Positive quantity to move, or "all"`,
				Required:    true,
			},
		},
	}
}

func (t *transferTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	property, err := requireString(args, "property")
	if err != nil {
		return nil, err
	}
	from, ok := stringArg(args, "from")
	if !ok {
		from = tool.Actor(ctx)
	}
	to, err := requireString(args, "to")
	if err != nil {
		return nil, err
	}

	src, err := t.x.registry.Get(from)
	if err != nil {
		return nil, err
	}
	dst, err := t.x.registry.Get(to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, goerr.Wrap(model.ErrInvalidOperation, "cannot transfer to the same entity", goerr.V(model.EntityIDKey, from))
	}

	balance, ok := src.Number(property)
	if !ok {
		return nil, goerr.Wrap(model.ErrTypeMismatch, "source property is not numeric",
			goerr.V(model.EntityIDKey, from), goerr.V(model.PropertyKey, property))
	}
	received, ok := dst.Number(property)
	if !ok {
		return nil, goerr.Wrap(model.ErrTypeMismatch, "destination property is not numeric",
			goerr.V(model.EntityIDKey, to), goerr.V(model.PropertyKey, property))
	}

	var amount float64
	if s, ok := args["amount"].(string); ok && strings.EqualFold(strings.TrimSpace(s), "all") {
		amount = balance
		if amount <= 0 {
			return nil, goerr.Wrap(model.ErrInsufficientAmount, "nothing to transfer",
				goerr.V(model.EntityIDKey, from), goerr.V(model.PropertyKey, property))
		}
	} else {
		amount, err = requireNumber(args, "amount")
		if err != nil {
			return nil, err
		}
		if amount <= 0 {
			return nil, goerr.Wrap(model.ErrInvalidOperation, "amount must be positive", goerr.V("amount", amount))
		}
	}

	if balance < amount {
		return nil, goerr.Wrap(model.ErrInsufficientAmount, "source balance is too low",
			goerr.V(model.EntityIDKey, from),
			goerr.V(model.PropertyKey, property),
			goerr.V("balance", balance),
			goerr.V("amount", amount))
	}

	tool.Update(ctx, fmt.Sprintf("Transferring %g %s from %s to %s", amount, property, from, to))

	remaining := balance - amount
	total := received + amount
	if err := t.x.registry.SetProperty(from, property, model.Number(remaining)); err != nil {
		return nil, err
	}
	if err := t.x.registry.SetProperty(to, property, model.Number(total)); err != nil {
		return nil, err
	}

	return map[string]any{
		"property":       property,
		"from":           from,
		"to":             to,
		"transferred":    amount,
		"from_remaining": remaining,
		"to_total":       total,
	}, nil
}
