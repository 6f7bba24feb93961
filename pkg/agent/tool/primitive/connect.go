package primitive

import (
	"context"
	"fmt"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

type connectTool struct {
	x *Executor
}

func (t *connectTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolConnect),
		Description: "Create or overwrite the directed relationship entity_a -> entity_b. Strength is clamped to [-1, 1]; positive means trust, negative distrust.",
		Parameters: map[string]*gollem.Parameter{
			"entity_a": {
				Type:        gollem.TypeString,
				Description: "Source entity ID (default: yourself)",
			},
			"entity_b": {
				Type:        gollem.TypeString,
				Description: "Target entity ID",
				Required:    true,
			},
			"strength": {
				Type:        gollem.TypeNumber,
				Description: "Relationship strength between -1.0 and 1.0",
				Required:    true,
			},
		},
	}
}

func (t *connectTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	a, ok := stringArg(args, "entity_a")
	if !ok {
		a = tool.Actor(ctx)
	}
	b, err := requireString(args, "entity_b")
	if err != nil {
		return nil, err
	}
	strength, err := requireNumber(args, "strength")
	if err != nil {
		return nil, err
	}

	rel, err := t.x.registry.Connect(a, b, strength)
	if err != nil {
		return nil, err
	}
	t.x.store.RecordRelationship(ctx, t.x.gameID, rel)

	tool.Update(ctx, fmt.Sprintf("Connected %s -> %s (%.2f)", a, b, rel.Strength))

	return map[string]any{
		"connection_id": rel.Key(),
		"strength":      rel.Strength,
		"type":          rel.Kind(),
	}, nil
}
