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

const defaultResolution = 0.5

type observeTool struct {
	x *Executor
}

func (t *observeTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolObserve),
		Description: "Observe an entity. Resolution below 0.3 reveals only its existence and type, below 0.7 its public properties, otherwise every property and its outgoing relationships.",
		Parameters: map[string]*gollem.Parameter{
			"entity": {
				Type:        gollem.TypeString,
				Description: "ID of the entity to observe",
				Required:    true,
			},
			"resolution": {
				Type:        gollem.TypeNumber,
				Description: "Level of detail between 0.0 and 1.0 (default: 0.5)",
			},
		},
	}
}

func (t *observeTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := requireString(args, "entity")
	if err != nil {
		return nil, err
	}
	resolution, ok, err := numberArg(args, "resolution")
	if err != nil {
		return nil, err
	}
	if !ok {
		resolution = defaultResolution
	}
	resolution = max(0, min(1, resolution))

	entity, err := t.x.registry.Get(id)
	if err != nil {
		return nil, goerr.Wrap(err, "cannot observe",
			goerr.V("available", strings.Join(t.x.registry.IDs(), ",")))
	}

	tool.Update(ctx, fmt.Sprintf("Observing %s", id))

	var observations map[string]any
	switch {
	case resolution < 0.3:
		observations = map[string]any{"exists": true, "type": entity.Role()}
	case resolution < 0.7:
		observations = entity.PublicProperties()
	default:
		observations = entity.AllProperties()
		rels := t.x.registry.RelationshipsOf(id)
		edges := make([]any, len(rels))
		for i, rel := range rels {
			edges[i] = map[string]any{
				"target":   rel.Target,
				"strength": rel.Strength,
				"type":     rel.Kind(),
			}
		}
		observations["relationships"] = edges
	}

	payload := map[string]any{
		"entity":          id,
		"observations":    observations,
		"resolution_used": resolution,
	}

	key := tool.Actor(ctx) + "\x00" + id
	t.x.observed[key]++
	switch count := t.x.observed[key]; {
	case count > 2:
		payload["note"] = fmt.Sprintf("You've observed this %d times. Little new information gained.", count)
	case count > 1:
		payload["note"] = "Familiar entity - minimal new information."
	}
	return payload, nil
}

// entityNotFound is used by tools that resolve several entities
func entityNotFound(id string) error {
	return goerr.Wrap(model.ErrNotFound, "entity not found", goerr.V(model.EntityIDKey, id))
}
