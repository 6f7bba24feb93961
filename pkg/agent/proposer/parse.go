package proposer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

const maxRecordedResponse = 2000

var (
	actionLine  = regexp.MustCompile(`(?im)^\s*[*_#>\-\s]*action\s*[*_]*\s*:\s*(.+)$`)
	reasonLine  = regexp.MustCompile(`(?im)^\s*[*_#>\-\s]*reason(?:ing)?\s*[*_]*\s*:\s*(.+)$`)
	thoughtLine = regexp.MustCompile(`(?im)^\s*[*_#>\-\s]*thought\s*[*_]*\s*:\s*(.+)$`)
	callPattern = regexp.MustCompile(`(?i)\b([a-z_]+)\s*\(`)
	codeFence   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

type jsonAction struct {
	Tool       string         `json:"tool"`
	Action     string         `json:"action"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
	Args       map[string]any `json:"args"`
	Parameters map[string]any `json:"parameters"`
	Reasoning  string         `json:"reasoning"`
	Reason     string         `json:"reason"`
}

// ParseAction extracts one tool invocation from free-form model output.
// It accepts a JSON object such as {"tool": "observe", "arguments": {...}}
// or a line such as `ACTION: transfer("supplies", FALCON, RAVEN, 10)`.
// Positional arguments are named with the tool's parameter order. Output
// without a recognizable invocation yields an error wrapping
// model.ErrMalformedAction.
func ParseAction(text string) (*model.Action, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, goerr.Wrap(model.ErrMalformedAction, "empty response")
	}

	if action, ok := parseJSONAction(trimmed); ok {
		action.Raw = truncate(trimmed)
		return action, nil
	}

	action, err := parseCallAction(trimmed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse proposed action", goerr.V("response", truncate(trimmed)))
	}
	action.Raw = truncate(trimmed)
	for _, re := range []*regexp.Regexp{reasonLine, thoughtLine} {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			action.Reasoning = strings.Trim(m[1], "[]* ")
			break
		}
	}
	return action, nil
}

func parseJSONAction(text string) (*model.Action, bool) {
	candidates := []string{text}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		candidates = append([]string{strings.TrimSpace(m[1])}, candidates...)
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(c))
		dec.UseNumber()
		var raw jsonAction
		if err := dec.Decode(&raw); err != nil {
			continue
		}

		name := firstNonEmpty(raw.Tool, raw.Action, raw.Name)
		if name == "" {
			continue
		}
		args := raw.Arguments
		if args == nil {
			args = raw.Args
		}
		if args == nil {
			args = raw.Parameters
		}
		if args == nil {
			args = map[string]any{}
		}
		return &model.Action{
			Tool:      name,
			Arguments: numbersToFloat(args).(map[string]any),
			Reasoning: firstNonEmpty(raw.Reasoning, raw.Reason),
		}, true
	}
	return nil, false
}

func parseCallAction(text string) (*model.Action, error) {
	var line string
	if m := actionLine.FindStringSubmatch(text); m != nil {
		line = strings.TrimSpace(m[1])
	} else {
		// no ACTION line: accept the first call of a known tool
		for _, m := range callPattern.FindAllStringSubmatchIndex(text, -1) {
			if _, err := types.ParseToolName(text[m[2]:m[3]]); err == nil {
				line = text[m[2]:]
				break
			}
		}
	}
	if line == "" {
		return nil, goerr.Wrap(model.ErrMalformedAction, "no action found")
	}
	line = strings.Trim(line, "[]`* ")

	open := strings.Index(line, "(")
	if open < 0 {
		name := strings.Fields(line)
		if len(name) == 0 {
			return nil, goerr.Wrap(model.ErrMalformedAction, "empty action")
		}
		return &model.Action{Tool: name[0], Arguments: map[string]any{}}, nil
	}

	name := strings.TrimSpace(line[:open])
	if name == "" {
		return nil, goerr.Wrap(model.ErrMalformedAction, "action has no tool name")
	}
	body, ok := enclosed(line[open:])
	if !ok {
		return nil, goerr.Wrap(model.ErrMalformedAction, "unbalanced parentheses", goerr.V("action", line))
	}

	params := splitTopLevel(body)
	positional := types.ToolName(strings.ToLower(name)).Params()
	args := make(map[string]any, len(params))
	pos := 0
	for _, p := range params {
		if p == "" {
			continue
		}
		if key, value, ok := namedArg(p); ok {
			args[key] = parseLiteral(value)
			continue
		}
		if pos < len(positional) {
			args[positional[pos]] = parseLiteral(p)
		} else {
			args["arg"+strconv.Itoa(pos)] = parseLiteral(p)
		}
		pos++
	}

	return &model.Action{Tool: name, Arguments: args}, nil
}

// enclosed returns the text between the opening parenthesis at s[0] and its
// matching closing parenthesis.
func enclosed(s string) (string, bool) {
	depth := 0
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

// splitTopLevel splits on commas outside quotes and brackets
func splitTopLevel(s string) []string {
	var parts []string
	var quote rune
	depth, start := 0, 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	return parts
}

var namedArgPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*[=:]\s*(.+)$`)

func namedArg(p string) (string, string, bool) {
	if p[0] == '"' || p[0] == '\'' || p[0] == '[' || p[0] == '{' {
		return "", "", false
	}
	m := namedArgPattern.FindStringSubmatch(p)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// parseLiteral converts an argument literal to a plain Go value: quoted text,
// numbers, booleans, JSON arrays and objects. Anything else is bare text.
func parseLiteral(s string) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return strings.ReplaceAll(s[1:len(s)-1], `\`+string(s[0]), string(s[0]))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var decoded []any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
		var items []any
		for _, item := range splitTopLevel(s[1 : len(s)-1]) {
			if item != "" {
				items = append(items, parseLiteral(item))
			}
		}
		if items == nil {
			items = []any{}
		}
		return items
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
	}
	return s
}

func numbersToFloat(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = numbersToFloat(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = numbersToFloat(item)
		}
		return x
	default:
		return v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxRecordedResponse {
		return s
	}
	return s[:maxRecordedResponse]
}
