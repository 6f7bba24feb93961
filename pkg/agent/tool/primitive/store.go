package primitive

import (
	"context"
	"fmt"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

const defaultConfidence = 0.5

type storeTool struct {
	x *Executor
}

func (t *storeTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolStore),
		Description: "Save an insight to the collective memory so future games can query it.",
		Parameters: map[string]*gollem.Parameter{
			"knowledge": {
				Type:        gollem.TypeString,
				Description: "The insight to remember",
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "Confidence between 0.0 and 1.0 (default: 0.5)",
			},
		},
	}
}

func (t *storeTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	knowledge, err := requireString(args, "knowledge")
	if err != nil {
		return nil, err
	}
	confidence, ok, err := numberArg(args, "confidence")
	if err != nil {
		return nil, err
	}
	if !ok {
		confidence = defaultConfidence
	}

	p, err := t.x.store.StorePattern(ctx, &model.Pattern{
		GameID:      t.x.gameID,
		Description: knowledge,
		Confidence:  confidence,
		Discoverer:  tool.Actor(ctx),
	})
	if err != nil {
		return nil, err
	}
	tool.Update(ctx, fmt.Sprintf("Stored insight: %s", knowledge))

	return map[string]any{
		"pattern_id":       string(p.ID),
		"stored_knowledge": p.Description,
		"confidence":       p.Confidence,
	}, nil
}
