package proposer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

const recallLimit = 3

func buildSystemPrompt(agent, briefing string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are agent %s.\n", agent)
	if briefing != "" {
		sb.WriteString(briefing)
		sb.WriteString("\n")
	}
	sb.WriteString(`
You interact with the world only through these tools:
observe(entity, resolution) - see information about an entity
query(memory_type, search) - search the collective memory of past games
detect(entities, pattern) - find entities matching a pattern
transfer(property, from, to, amount) - move a numeric property between entities
modify(entity, property, operation, value) - change or create properties and entities
connect(entity_a, entity_b, strength) - set a relationship between -1 and 1
signal(message, intensity, target) - send a message to one agent or "all"
receive(filters, window) - listen for recent signals
store(knowledge, confidence) - save an insight for future games
compute(inputs, operation) - sum, average, min, max, count, compare or concat values

The rules of the world are not given. Discover them by experimenting.
Other agents may help or betray you.

Choose exactly ONE tool per turn. Call it as a function if you can.
Otherwise answer with:
THOUGHT: your reasoning
ACTION: tool_name(arg1, arg2, ...)
`)
	return sb.String()
}

func buildUserPrompt(ctx context.Context, obs *model.Observation, memory interfaces.MemoryQuerier) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SITUATION (round %d, time %.1f", obs.Round, obs.Time)
	if obs.MaxTime > 0 {
		fmt.Fprintf(&sb, " of %.0f", obs.MaxTime)
	}
	sb.WriteString(")\n")

	if obs.Self != nil {
		fmt.Fprintf(&sb, "Your state: %s\n", renderProperties(obs.Self))
	}
	if len(obs.Agents) > 0 {
		fmt.Fprintf(&sb, "Other agents: %s\n", strings.Join(obs.Agents, ", "))
	}
	if len(obs.Objects) > 0 {
		fmt.Fprintf(&sb, "Other entities: %s\n", strings.Join(obs.Objects, ", "))
	}

	if len(obs.Signals) > 0 {
		sb.WriteString("\nRecent signals:\n")
		for _, s := range obs.Signals {
			fmt.Fprintf(&sb, "- from %s (intensity %.1f, t=%.1f): %s\n", s.Origin, s.Intensity, s.EmittedAt, s.Payload.String())
		}
	}

	if len(obs.History) > 0 {
		sb.WriteString("\nYour recent actions:\n")
		for _, r := range obs.History {
			sb.WriteString("- ")
			sb.WriteString(renderResult(r))
			sb.WriteString("\n")
		}
	}
	if obs.LastResult != nil {
		fmt.Fprintf(&sb, "\nResult of your last action: %s\n", renderResult(obs.LastResult))
	}

	if memory != nil {
		if recalled := recall(ctx, obs, memory); recalled != "" {
			sb.WriteString("\nFrom memory of past games:\n")
			sb.WriteString(recalled)
		}
	}

	sb.WriteString("\nWhat is your next action?")
	return sb.String()
}

func recall(ctx context.Context, obs *model.Observation, memory interfaces.MemoryQuerier) string {
	query := strings.TrimSpace(strings.Join([]string{obs.Scenario, obs.Agent, "cooperation trust escape"}, " "))
	hits, err := memory.Search(ctx, types.MemoryTypePattern, query, recallLimit)
	if err != nil {
		logging.From(ctx).Warn("memory recall failed", slog.Any("error", err))
		return ""
	}

	var sb strings.Builder
	for _, h := range hits {
		if h.Pattern == nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s (confidence %.2f)\n", h.Pattern.Description, h.Pattern.Confidence)
	}
	return sb.String()
}

func renderProperties(e *model.Entity) string {
	parts := make([]string, 0, len(e.Properties))
	for _, name := range e.PropertyNames() {
		v, _ := e.Get(name)
		parts = append(parts, fmt.Sprintf("%s=%s", name, v.String()))
	}
	return strings.Join(parts, ", ")
}

func renderResult(r *model.ToolResult) string {
	if r.Success {
		return fmt.Sprintf("%s succeeded: %v", r.Tool, r.Payload)
	}
	return fmt.Sprintf("%s failed (%s): %s", r.Tool, r.Failure, r.Reason)
}
