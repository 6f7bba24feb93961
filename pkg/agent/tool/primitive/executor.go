package primitive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/memory"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/world"
)

// DefaultSignalWindow is the receive window used when an agent gives none
const DefaultSignalWindow = 20.0

// Executor validates and applies primitive tool invocations against the
// world of one game. Every invocation, successful or not, is recorded as
// exactly one memory event.
type Executor struct {
	gameID   model.GameID
	registry *world.Registry
	bus      *world.SignalBus
	store    *memory.Store
	window   float64
	round    int
	tools    []gollem.Tool
	byName   map[types.ToolName]gollem.Tool
	observed map[string]int
}

// Option configures an Executor
type Option func(*Executor)

// WithSignalWindow sets the default receive window in simulated time units
func WithSignalWindow(window float64) Option {
	return func(x *Executor) {
		if window > 0 {
			x.window = window
		}
	}
}

// New builds the ten primitive tools bound to one game's world
func New(gameID model.GameID, registry *world.Registry, bus *world.SignalBus, store *memory.Store, opts ...Option) *Executor {
	x := &Executor{
		gameID:   gameID,
		registry: registry,
		bus:      bus,
		store:    store,
		window:   DefaultSignalWindow,
		observed: make(map[string]int),
	}
	for _, opt := range opts {
		opt(x)
	}

	x.tools = []gollem.Tool{
		&observeTool{x: x},
		&queryTool{x: x},
		&detectTool{x: x},
		&transferTool{x: x},
		&modifyTool{x: x},
		&connectTool{x: x},
		&signalTool{x: x},
		&receiveTool{x: x},
		&storeTool{x: x},
		&computeTool{x: x},
	}
	x.byName = make(map[types.ToolName]gollem.Tool, len(x.tools))
	for _, t := range x.tools {
		x.byName[types.ToolName(t.Spec().Name)] = t
	}
	return x
}

// SetRound sets the round number stamped on recorded events
func (x *Executor) SetRound(round int) {
	x.round = round
}

// Tools returns the primitive tools in canonical order
func (x *Executor) Tools() []gollem.Tool {
	out := make([]gollem.Tool, len(x.tools))
	copy(out, x.tools)
	return out
}

// Specs returns the tool specifications in canonical order
func (x *Executor) Specs() []gollem.ToolSpec {
	specs := make([]gollem.ToolSpec, len(x.tools))
	for i, t := range x.tools {
		specs[i] = t.Spec()
	}
	return specs
}

// Dispatch runs action on behalf of actor. Validation failures never escape:
// they are recorded and returned as a failed result.
func (x *Executor) Dispatch(ctx context.Context, actor string, action *model.Action) *model.ToolResult {
	if action == nil {
		return x.RecordFailure(ctx, actor, nil, types.FailureMalformedAction,
			goerr.Wrap(model.ErrMalformedAction, "no action proposed"))
	}

	name, err := types.ParseToolName(action.Tool)
	if err != nil {
		return x.record(ctx, actor, action.Tool, recordedArgs(action.Arguments), action.Reasoning, nil,
			goerr.Wrap(model.ErrUnknownTool, "unknown primitive tool", goerr.V(model.ToolKey, action.Tool)))
	}

	args := NormalizeArgs(name, action.Arguments)
	logging.From(ctx).Debug("dispatching primitive",
		slog.String("actor", actor),
		slog.String("tool", string(name)),
		slog.Any("args", args),
	)

	t := x.byName[name]
	payload, runErr := t.Run(tool.WithActor(ctx, actor), args)
	return x.record(ctx, actor, string(name), recordedArgs(args), action.Reasoning, payload, runErr)
}

// RecordFailure records an action that could not be dispatched, such as an
// unparseable proposal or an exhausted reasoning call, as a no-op failure.
func (x *Executor) RecordFailure(ctx context.Context, actor string, action *model.Action, kind types.FailureKind, cause error) *model.ToolResult {
	var name, reasoning string
	var args map[string]model.Value
	if action != nil {
		name = action.Tool
		reasoning = action.Reasoning
		args = recordedArgs(action.Arguments)
		if action.Raw != "" {
			args["raw"] = model.Text(action.Raw)
		}
	}
	if cause == nil {
		cause = goerr.New("action failed", goerr.V("kind", kind))
	}
	return x.recordKind(ctx, actor, name, args, reasoning, nil, kind, cause)
}

func (x *Executor) record(ctx context.Context, actor, name string, args map[string]model.Value, reasoning string, payload map[string]any, err error) *model.ToolResult {
	return x.recordKind(ctx, actor, name, args, reasoning, payload, model.FailureKindOf(err), err)
}

func (x *Executor) recordKind(ctx context.Context, actor, name string, args map[string]model.Value, reasoning string, payload map[string]any, kind types.FailureKind, err error) *model.ToolResult {
	result := &model.ToolResult{
		Tool:    name,
		Actor:   actor,
		Success: err == nil,
	}
	ev := &model.MemoryEvent{
		GameID:    x.gameID,
		Round:     x.round,
		Time:      x.registry.Clock().Now(),
		Actor:     actor,
		Tool:      name,
		Arguments: args,
		Success:   err == nil,
		Reasoning: reasoning,
	}

	if err != nil {
		result.Failure = kind
		result.Reason = err.Error()
		ev.Failure = kind
		ev.Reason = err.Error()
		logging.From(ctx).Debug("primitive failed",
			slog.String("actor", actor),
			slog.String("tool", name),
			slog.String("failure", string(kind)),
			slog.String("reason", result.Reason),
		)
	} else {
		result.Payload = payload
		if outcome, convErr := model.NewValue(payload); convErr == nil {
			ev.Outcome = outcome
		} else {
			ev.Outcome = model.Text(fmt.Sprintf("%v", payload))
		}
	}

	stored, recErr := x.store.RecordEvent(ctx, ev)
	if recErr != nil {
		logging.From(ctx).Error("failed to record memory event",
			slog.String("actor", actor),
			slog.String("tool", name),
			slog.Any("error", recErr),
		)
		return result
	}
	result.EventID = stored.ID
	return result
}

type declaredTool struct {
	spec gollem.ToolSpec
}

func (t *declaredTool) Spec() gollem.ToolSpec {
	return t.spec
}

func (t *declaredTool) Run(context.Context, map[string]any) (map[string]any, error) {
	return nil, goerr.New("tool is declared only, dispatch it through an Executor", goerr.V(model.ToolKey, t.spec.Name))
}

// Declarations returns the ten tools for declaring them to a language model.
// They carry the specifications only; running one returns an error.
func Declarations() []gollem.Tool {
	specs := New("", nil, nil, nil).Specs()
	out := make([]gollem.Tool, len(specs))
	for i, spec := range specs {
		out[i] = &declaredTool{spec: spec}
	}
	return out
}
