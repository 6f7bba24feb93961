package primitive

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/world"
)

type receiveTool struct {
	x *Executor
}

func (t *receiveTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolReceive),
		Description: "Listen for signals addressed to you or broadcast, emitted within the time window. Never blocks.",
		Parameters: map[string]*gollem.Parameter{
			"filters": {
				Type:        gollem.TypeObject,
				Description: "Optional filters: sender, min_intensity, max_intensity",
				Properties: map[string]*gollem.Parameter{
					"sender":        {Type: gollem.TypeString, Description: "Only signals from this entity"},
					"min_intensity": {Type: gollem.TypeNumber, Description: "Minimum intensity"},
					"max_intensity": {Type: gollem.TypeNumber, Description: "Maximum intensity"},
				},
			},
			"window": {
				Type:        gollem.TypeNumber,
				Description: "How far back to look in time units",
			},
		},
	}
}

func (t *receiveTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	logger := logging.From(ctx)

	window := t.x.window
	if v, ok, err := numberArg(args, "window"); err == nil && ok && v >= 0 {
		window = v
	}

	filters, err := mapArg(args, "filters")
	if err != nil {
		logger.Debug("ignoring malformed receive filters", slog.Any("error", err))
		filters = map[string]any{}
	}
	filter := signalFilter(filters)

	signals := t.x.bus.Receive(tool.Actor(ctx), filter, window)
	items := make([]any, len(signals))
	for i, s := range signals {
		items[i] = s.Map()
	}

	return map[string]any{
		"signals": items,
		"count":   len(items),
		"window":  window,
	}, nil
}

func signalFilter(raw map[string]any) world.SignalFilter {
	var f world.SignalFilter
	for _, key := range []string{"sender", "origin", "from"} {
		if s, ok := stringArg(raw, key); ok {
			f.Origin = s
			break
		}
	}
	if v, ok, err := numberArg(raw, "min_intensity"); err == nil && ok {
		f.MinIntensity = &v
	}
	if v, ok, err := numberArg(raw, "max_intensity"); err == nil && ok {
		f.MaxIntensity = &v
	}
	return f
}
