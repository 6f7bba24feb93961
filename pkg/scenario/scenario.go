package scenario

import (
	"embed"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/world"
)

//go:embed builtin/*.toml
var builtinFS embed.FS

// DefaultName is the scenario played when none is selected
const DefaultName = "safehouse"

var (
	// ErrUnknownScenario is returned for a scenario name that is not built in
	ErrUnknownScenario = goerr.New("unknown scenario")
	// ErrInvalidScenario is returned for a scenario definition that fails validation
	ErrInvalidScenario = goerr.New("invalid scenario")
)

// Match selects how a terminal condition is evaluated
type Match string

const (
	// MatchAny ends the game when at least one entity matches
	MatchAny Match = "any"
	// MatchNone ends the game when no entity matches
	MatchNone Match = "none"
)

// Scenario is the initial world and environment rules of a game
type Scenario struct {
	Name        string     `toml:"name"`
	Description string     `toml:"description"`
	Agents      []string   `toml:"agents"`
	Entities    []Entity   `toml:"entity"`
	Effects     []Effect   `toml:"effect"`
	Terminals   []Terminal `toml:"terminal"`

	compiled bool
}

// Entity is an entity created at setup
type Entity struct {
	ID         string         `toml:"id"`
	Properties map[string]any `toml:"properties"`
}

// Effect is an environment change applied to every matching entity at the
// end of each round
type Effect struct {
	Name      string   `toml:"name"`
	When      string   `toml:"when"`
	Target    string   `toml:"target"`
	Property  string   `toml:"property"`
	Operation string   `toml:"operation"`
	Value     any      `toml:"value"`
	Min       *float64 `toml:"min"`
	Max       *float64 `toml:"max"`

	when   world.Filter
	target world.Filter
	op     types.ModifyOperation
	value  model.Value
}

// Terminal is a condition that ends the game when it holds at a round boundary
type Terminal struct {
	Name      string `toml:"name"`
	Condition string `toml:"condition"`
	Match     Match  `toml:"match"`

	filter world.Filter
}

// Names returns the built-in scenario names
func Names() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Load returns a built-in scenario by name
func Load(name string) (*Scenario, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultName
	}
	data, err := builtinFS.ReadFile("builtin/" + name + ".toml")
	if err != nil {
		return nil, goerr.Wrap(ErrUnknownScenario, "scenario is not built in",
			goerr.V("name", name), goerr.V("available", strings.Join(Names(), ",")))
	}
	return Parse(data)
}

// LoadFile reads a scenario definition from a TOML file
func LoadFile(filePath string) (*Scenario, error) {
	// #nosec G304 - path is provided by CLI argument
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read scenario file", goerr.V("path", filePath))
	}
	s, err := Parse(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load scenario file", goerr.V("path", filePath))
	}
	return s, nil
}

// Parse decodes and validates a TOML scenario definition
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, goerr.Wrap(ErrInvalidScenario, "failed to parse TOML scenario", goerr.V("error", err.Error()))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the definition and compiles its filters
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return goerr.Wrap(ErrInvalidScenario, "scenario name is required")
	}
	if len(s.Agents) == 0 {
		return goerr.Wrap(ErrInvalidScenario, "scenario has no agents", goerr.V("name", s.Name))
	}

	ids := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.ID == "" {
			return goerr.Wrap(ErrInvalidScenario, "entity id is required", goerr.V("name", s.Name))
		}
		if ids[e.ID] {
			return goerr.Wrap(ErrInvalidScenario, "duplicate entity", goerr.V(model.EntityIDKey, e.ID))
		}
		ids[e.ID] = true
		for k, v := range e.Properties {
			if _, err := model.NewValue(v); err != nil {
				return goerr.Wrap(ErrInvalidScenario, "invalid property value",
					goerr.V(model.EntityIDKey, e.ID), goerr.V(model.PropertyKey, k), goerr.V("error", err.Error()))
			}
		}
	}

	seen := make(map[string]bool, len(s.Agents))
	for _, a := range s.Agents {
		if !ids[a] {
			return goerr.Wrap(ErrInvalidScenario, "agent is not a declared entity", goerr.V(model.EntityIDKey, a))
		}
		if seen[a] {
			return goerr.Wrap(ErrInvalidScenario, "agent listed twice", goerr.V(model.EntityIDKey, a))
		}
		seen[a] = true
	}

	for i := range s.Effects {
		if err := s.Effects[i].compile(); err != nil {
			return goerr.Wrap(err, "invalid effect", goerr.V("effect", s.Effects[i].Name))
		}
	}
	for i := range s.Terminals {
		if err := s.Terminals[i].compile(); err != nil {
			return goerr.Wrap(err, "invalid terminal condition", goerr.V("terminal", s.Terminals[i].Name))
		}
	}
	s.compiled = true
	return nil
}

func (e *Effect) compile() error {
	if e.Property == "" {
		return goerr.Wrap(ErrInvalidScenario, "effect property is required")
	}
	op, err := types.ParseModifyOperation(e.Operation)
	if err != nil {
		return goerr.Wrap(ErrInvalidScenario, err.Error())
	}
	switch op {
	case types.ModifySet, types.ModifyAdd, types.ModifySubtract, types.ModifyMultiply, types.ModifyRemove:
	default:
		return goerr.Wrap(ErrInvalidScenario, "operation is not allowed in effects", goerr.V(model.OperationKey, op))
	}
	e.op = op

	if op != types.ModifyRemove {
		v, err := model.NewValue(e.Value)
		if err != nil {
			return goerr.Wrap(ErrInvalidScenario, "invalid effect value", goerr.V("error", err.Error()))
		}
		if op.IsArithmetic() && v.Kind != types.ValueKindNumber {
			return goerr.Wrap(ErrInvalidScenario, "arithmetic effect needs a number", goerr.V(model.OperationKey, op))
		}
		e.value = v
	}

	if e.target, err = world.ParseFilter(e.Target); err != nil {
		return goerr.Wrap(ErrInvalidScenario, "invalid effect target", goerr.V("error", err.Error()))
	}
	if e.When != "" {
		if e.when, err = world.ParseFilter(e.When); err != nil {
			return goerr.Wrap(ErrInvalidScenario, "invalid effect guard", goerr.V("error", err.Error()))
		}
	}
	return nil
}

func (t *Terminal) compile() error {
	switch t.Match {
	case "":
		t.Match = MatchAny
	case MatchAny, MatchNone:
	default:
		return goerr.Wrap(ErrInvalidScenario, "unknown match mode", goerr.V("match", t.Match))
	}
	if strings.TrimSpace(t.Condition) == "" {
		return goerr.Wrap(ErrInvalidScenario, "terminal condition is required")
	}
	f, err := world.ParseFilter(t.Condition)
	if err != nil {
		return goerr.Wrap(ErrInvalidScenario, "invalid terminal condition", goerr.V("error", err.Error()))
	}
	t.filter = f
	return nil
}
