package primitive

import (
	"context"
	"fmt"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

const defaultIntensity = 1.0

type signalTool struct {
	x *Executor
}

func (t *signalTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolSignal),
		Description: `Emit a message on the signal bus. Omit target or use "all" to broadcast.`,
		Parameters: map[string]*gollem.Parameter{
			"message": {
				Type:        gollem.TypeString,
				Description: "Message content",
				Required:    true,
			},
			"intensity": {
				Type:        gollem.TypeNumber,
				Description: "Non-negative urgency (default: 1)",
			},
			"target": {
				Type:        gollem.TypeString,
				Description: `Receiving entity ID, or "all"`,
			},
		},
	}
}

func (t *signalTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	message, ok, err := valueArg(args, "message")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missing("message")
	}
	intensity, ok, err := numberArg(args, "intensity")
	if err != nil {
		return nil, err
	}
	if !ok {
		intensity = defaultIntensity
	}
	target, _ := stringArg(args, "target")

	sig, err := t.x.bus.Emit(ctx, tool.Actor(ctx), target, message, intensity)
	if err != nil {
		return nil, err
	}

	deliveredTo := sig.Target
	if sig.IsBroadcast() {
		deliveredTo = model.BroadcastTarget
	}
	tool.Update(ctx, fmt.Sprintf("Signal to %s: %s", deliveredTo, message.String()))

	return map[string]any{
		"signal_id":    sig.ID,
		"delivered_to": deliveredTo,
		"intensity":    sig.Intensity,
		"emitted_at":   sig.EmittedAt,
	}, nil
}
