package types

import (
	"fmt"
	"strings"
)

// ToolName identifies one of the ten primitive tools
type ToolName string

const (
	ToolObserve  ToolName = "observe"
	ToolQuery    ToolName = "query"
	ToolDetect   ToolName = "detect"
	ToolTransfer ToolName = "transfer"
	ToolModify   ToolName = "modify"
	ToolConnect  ToolName = "connect"
	ToolSignal   ToolName = "signal"
	ToolReceive  ToolName = "receive"
	ToolStore    ToolName = "store"
	ToolCompute  ToolName = "compute"
)

// AllToolNames returns the primitive tools in their canonical order
func AllToolNames() []ToolName {
	return []ToolName{
		ToolObserve,
		ToolQuery,
		ToolDetect,
		ToolTransfer,
		ToolModify,
		ToolConnect,
		ToolSignal,
		ToolReceive,
		ToolStore,
		ToolCompute,
	}
}

// IsValid checks if the tool name is one of the primitives
func (n ToolName) IsValid() bool {
	switch n {
	case ToolObserve,
		ToolQuery,
		ToolDetect,
		ToolTransfer,
		ToolModify,
		ToolConnect,
		ToolSignal,
		ToolReceive,
		ToolStore,
		ToolCompute:
		return true
	default:
		return false
	}
}

// Params returns the positional parameter names of the tool. Text proposals
// such as `transfer("supplies", FALCON, RAVEN, 10)` are mapped with this order.
func (n ToolName) Params() []string {
	switch n {
	case ToolObserve:
		return []string{"entity", "resolution"}
	case ToolQuery:
		return []string{"memory_type", "search", "limit"}
	case ToolDetect:
		return []string{"entities", "pattern"}
	case ToolTransfer:
		return []string{"property", "from", "to", "amount"}
	case ToolModify:
		return []string{"entity", "property", "operation", "value"}
	case ToolConnect:
		return []string{"entity_a", "entity_b", "strength"}
	case ToolSignal:
		return []string{"message", "intensity", "target"}
	case ToolReceive:
		return []string{"filters", "window"}
	case ToolStore:
		return []string{"knowledge", "confidence"}
	case ToolCompute:
		return []string{"inputs", "operation"}
	default:
		return nil
	}
}

// IsCooperative reports whether the tool counts toward cooperation statistics
func (n ToolName) IsCooperative() bool {
	return n == ToolTransfer || n == ToolConnect
}

// IsCommunicative reports whether the tool counts toward communication statistics
func (n ToolName) IsCommunicative() bool {
	return n == ToolSignal || n == ToolReceive
}

// IsExploratory reports whether the tool only gathers information
func (n ToolName) IsExploratory() bool {
	return n == ToolObserve || n == ToolQuery || n == ToolDetect
}

// String returns the string representation of the tool name
func (n ToolName) String() string {
	return string(n)
}

// ParseToolName parses a tool name case-insensitively
func ParseToolName(s string) (ToolName, error) {
	name := ToolName(strings.ToLower(strings.TrimSpace(s)))
	if !name.IsValid() {
		return "", fmt.Errorf("invalid tool name: %s", s)
	}
	return name, nil
}
