package proposer

import (
	"context"
	"sync"

	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// Step is one scripted answer: an action, raw model text, or an error
type Step struct {
	Action *model.Action
	Text   string
	Err    error
}

// Do returns a step proposing tool with args
func Do(tool types.ToolName, args map[string]any) Step {
	return Step{Action: &model.Action{Tool: string(tool), Arguments: args}}
}

// Say returns a step answering with raw text, parsed like model output
func Say(text string) Step {
	return Step{Text: text}
}

// Fail returns a step failing with err
func Fail(err error) Step {
	return Step{Err: err}
}

// Scripted is a deterministic proposer replaying fixed steps per agent.
// Agents without a script, or whose script ran out, observe themselves.
type Scripted struct {
	mu           sync.Mutex
	scripts      map[string][]Step
	shared       []Step
	observations []*model.Observation
}

var _ interfaces.Proposer = (*Scripted)(nil)

// NewScripted creates a proposer whose steps are consumed by any agent in
// call order
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{
		scripts: make(map[string][]Step),
		shared:  steps,
	}
}

// For sets the steps of one agent. They take precedence over shared steps.
func (s *Scripted) For(agent string, steps ...Step) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[agent] = append(s.scripts[agent], steps...)
	return s
}

// Observations returns every observation passed to Propose
func (s *Scripted) Observations() []*model.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

func (s *Scripted) Propose(ctx context.Context, obs *model.Observation, _ interfaces.MemoryQuerier) (*model.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.observations = append(s.observations, obs)
	step, ok := s.next(obs.Agent)
	s.mu.Unlock()

	if !ok {
		return &model.Action{
			Tool:      string(types.ToolObserve),
			Arguments: map[string]any{"entity": obs.Agent},
		}, nil
	}

	switch {
	case step.Err != nil:
		return nil, step.Err
	case step.Action != nil:
		a := *step.Action
		a.Arguments = make(map[string]any, len(step.Action.Arguments))
		for k, v := range step.Action.Arguments {
			a.Arguments[k] = v
		}
		return &a, nil
	default:
		return ParseAction(step.Text)
	}
}

func (s *Scripted) next(agent string) (Step, bool) {
	if steps := s.scripts[agent]; len(steps) > 0 {
		s.scripts[agent] = steps[1:]
		return steps[0], true
	}
	if len(s.shared) > 0 {
		step := s.shared[0]
		s.shared = s.shared[1:]
		return step, true
	}
	return Step{}, false
}
