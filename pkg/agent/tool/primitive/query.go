package primitive

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

const defaultQueryLimit = 5

type queryTool struct {
	x *Executor
}

func (t *queryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolQuery),
		Description: "Search the collective memory shared across games. Events and patterns are ranked by similarity to the search text; relationships match by \"source->target\" key.",
		Parameters: map[string]*gollem.Parameter{
			"memory_type": {
				Type:        gollem.TypeString,
				Description: "One of: event, pattern, relationship",
				Required:    true,
			},
			"search": {
				Type:        gollem.TypeString,
				Description: "Search text. Empty returns the most recent records.",
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results (default: 5)",
			},
		},
	}
}

func (t *queryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	rawType, _ := stringArg(args, "memory_type")
	search, _ := stringArg(args, "search")

	limit := defaultQueryLimit
	if v, ok, err := numberArg(args, "limit"); err == nil && ok && v >= 1 {
		limit = int(v)
	}

	payload := map[string]any{
		"memory_type": rawType,
		"search":      search,
		"results":     []any{},
		"count":       0,
	}

	memType, ok := types.ParseMemoryType(rawType)
	if !ok {
		return payload, nil
	}

	tool.Update(ctx, fmt.Sprintf("Querying %s memory: %s", memType, search))

	hits, err := t.x.store.Search(ctx, memType, search, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "memory search failed", goerr.V("memory_type", memType))
	}

	results := make([]any, len(hits))
	for i, h := range hits {
		results[i] = h.Map()
	}
	payload["memory_type"] = string(memType)
	payload["results"] = results
	payload["count"] = len(results)
	return payload, nil
}
