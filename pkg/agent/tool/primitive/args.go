package primitive

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// aliases maps argument names language models tend to use onto the
// canonical parameter names of each tool
var aliases = map[types.ToolName]map[string]string{
	types.ToolObserve: {
		"entity_id": "entity", "target": "entity", "id": "entity", "name": "entity",
		"detail": "resolution", "level": "resolution",
	},
	types.ToolQuery: {
		"search_term": "search", "query": "search", "term": "search", "text": "search",
		"type": "memory_type", "kind": "memory_type",
		"top_k": "limit", "k": "limit",
	},
	types.ToolDetect: {
		"entity_set": "entities", "entity_ids": "entities", "targets": "entities",
		"pattern_type": "pattern", "filter": "pattern", "query": "pattern",
	},
	types.ToolTransfer: {
		"property_name": "property", "resource": "property",
		"from_entity": "from", "source": "from", "sender": "from",
		"to_entity": "to", "target": "to", "destination": "to", "recipient": "to",
		"quantity": "amount", "value": "amount",
	},
	types.ToolModify: {
		"entity_id": "entity", "target": "entity",
		"property_name": "property", "key": "property",
		"op":        "operation",
		"new_value": "value", "amount": "value",
	},
	types.ToolConnect: {
		"source": "entity_a", "from": "entity_a", "a": "entity_a", "entity1": "entity_a",
		"target": "entity_b", "to": "entity_b", "b": "entity_b", "entity2": "entity_b",
		"weight": "strength", "value": "strength",
	},
	types.ToolSignal: {
		"content": "message", "text": "message", "payload": "message",
		"strength": "intensity", "priority": "intensity",
		"recipient": "target", "to": "target",
	},
	types.ToolReceive: {
		"filter": "filters", "filter_criteria": "filters",
		"time_window": "window",
	},
	types.ToolStore: {
		"description": "knowledge", "pattern": "knowledge", "text": "knowledge", "insight": "knowledge",
		"certainty": "confidence",
	},
	types.ToolCompute: {
		"values": "inputs", "operands": "inputs", "data": "inputs",
		"op": "operation", "function": "operation",
	},
}

// NormalizeArgs rewrites argument names to the canonical snake_case names of
// the tool. Canonical names win over aliases when both are present; among
// aliases of the same name the first in sorted key order wins.
func NormalizeArgs(name types.ToolName, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	table := aliases[name]

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var aliased []string
	for _, k := range keys {
		key := snakeCase(k)
		if _, ok := table[key]; ok {
			aliased = append(aliased, k)
			continue
		}
		if _, done := out[key]; !done {
			out[key] = args[k]
		}
	}
	for _, k := range aliased {
		to := table[snakeCase(k)]
		if _, done := out[to]; !done {
			out[to] = args[k]
		}
	}
	return out
}

// snakeCase lowers camelCase names; a run of capitals is one word, so
// entityID becomes entity_id.
func snakeCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var sb strings.Builder
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '_' && runes[i-1] != '-' && runes[i-1] != ' ' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
		case r == '-' || r == ' ':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func missing(key string) error {
	return goerr.Wrap(model.ErrInvalidOperation, "missing argument", goerr.V("argument", key))
}

// stringArg returns a textual argument. Numbers and booleans are formatted.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprintf("%v", x), true
	}
}

func requireString(args map[string]any, key string) (string, error) {
	s, ok := stringArg(args, key)
	if !ok {
		return "", missing(key)
	}
	return s, nil
}

// numberArg returns a numeric argument. Numeric strings are accepted; ok is
// false when the argument is absent.
func numberArg(args map[string]any, key string) (float64, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, true, goerr.Wrap(model.ErrTypeMismatch, "argument is not a number", goerr.V("argument", key), goerr.V(model.ValueKey, x.String()))
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, true, goerr.Wrap(model.ErrTypeMismatch, "argument is not a number", goerr.V("argument", key), goerr.V(model.ValueKey, x))
		}
		f = parsed
	default:
		return 0, true, goerr.Wrap(model.ErrTypeMismatch, "argument is not a number", goerr.V("argument", key), goerr.V("type", fmt.Sprintf("%T", v)))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, goerr.Wrap(model.ErrTypeMismatch, "argument is not a finite number", goerr.V("argument", key))
	}
	return f, true, nil
}

func requireNumber(args map[string]any, key string) (float64, error) {
	f, ok, err := numberArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missing(key)
	}
	return f, nil
}

// stringsArg returns a list argument. A single string is split on commas.
func stringsArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}

	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, item := range x {
			raw = append(raw, fmt.Sprintf("%v", item))
		}
	case string:
		raw = strings.Split(x, ",")
	default:
		raw = []string{fmt.Sprintf("%v", x)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.Trim(strings.TrimSpace(s), `"'`); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// valueArg converts an argument into a tagged value
func valueArg(args map[string]any, key string) (model.Value, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return model.Value{}, false, nil
	}
	val, err := model.NewValue(v)
	if err != nil {
		return model.Value{}, true, goerr.Wrap(err, "invalid argument value", goerr.V("argument", key))
	}
	return val, true, nil
}

// mapArg returns an object argument. Strings holding JSON objects are decoded.
func mapArg(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" || x == "{}" {
			return map[string]any{}, nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(x), &decoded); err != nil {
			return nil, goerr.Wrap(model.ErrTypeMismatch, "argument is not an object", goerr.V("argument", key))
		}
		return decoded, nil
	default:
		return nil, goerr.Wrap(model.ErrTypeMismatch, "argument is not an object", goerr.V("argument", key), goerr.V("type", fmt.Sprintf("%T", v)))
	}
}

// recordedArgs converts arguments to tagged values for the memory event.
// Values that cannot be converted are stored as text.
func recordedArgs(args map[string]any) map[string]model.Value {
	out := make(map[string]model.Value, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		val, err := model.NewValue(v)
		if err != nil {
			val = model.Text(fmt.Sprintf("%v", v))
		}
		out[k] = val
	}
	return out
}
