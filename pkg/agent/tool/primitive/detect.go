package primitive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/world"
)

type detectTool struct {
	x *Executor
}

func (t *detectTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolDetect),
		Description: `Find entities matching a structural pattern. Pattern is a filter such as "has:supplies", "status=active and supplies>5", "trusts:RAVEN", or "correlation" for properties shared by all given entities. Other text matches entity names and text values.`,
		Parameters: map[string]*gollem.Parameter{
			"entities": {
				Type:        gollem.TypeArray,
				Description: `Entity IDs to scan, or ["all"]`,
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
			"pattern": {
				Type:        gollem.TypeString,
				Description: "Pattern to match",
				Required:    true,
			},
		},
	}
}

func (t *detectTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	pattern, _ := stringArg(args, "pattern")

	var scope, unknown []string
	requested := stringsArg(args, "entities")
	if len(requested) == 0 || (len(requested) == 1 && strings.EqualFold(requested[0], "all")) {
		scope = t.x.registry.IDs()
	} else {
		for _, id := range requested {
			if strings.EqualFold(id, "all") {
				scope = t.x.registry.IDs()
				unknown = nil
				break
			}
			if t.x.registry.Has(id) {
				scope = append(scope, id)
			} else {
				unknown = append(unknown, id)
			}
		}
	}

	tool.Update(ctx, fmt.Sprintf("Detecting %q over %d entities", pattern, len(scope)))

	payload := map[string]any{
		"pattern": pattern,
		"scanned": len(scope),
	}
	if len(unknown) > 0 {
		payload["unknown"] = unknown
	}

	if strings.EqualFold(pattern, "correlation") || strings.EqualFold(pattern, "common") {
		common := t.commonProperties(scope)
		matches := []string{}
		if len(scope) > 1 && len(common) > 0 {
			matches = scope
		}
		payload["common_properties"] = common
		payload["matches"] = matches
		payload["count"] = len(matches)
		return payload, nil
	}

	filter, err := world.ParseFilter(pattern)
	if err != nil {
		filter = world.Keywords(strings.Fields(pattern)...)
	}

	matches := []string{}
	if len(scope) > 0 {
		for e := range t.x.registry.Entities(world.IDIn(scope...), filter) {
			matches = append(matches, e.ID())
		}
	}
	payload["matches"] = matches
	payload["count"] = len(matches)
	if len(scope) > 0 {
		payload["confidence"] = float64(len(matches)) / float64(len(scope))
	}
	return payload, nil
}

func (t *detectTool) commonProperties(ids []string) []string {
	counts := make(map[string]int)
	for e := range t.x.registry.Entities(world.IDIn(ids...)) {
		for _, name := range e.PropertyNames() {
			counts[name]++
		}
	}
	common := []string{}
	for name, n := range counts {
		if n == len(ids) {
			common = append(common, name)
		}
	}
	sort.Strings(common)
	return common
}
