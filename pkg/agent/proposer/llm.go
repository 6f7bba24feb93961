package proposer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// LLM proposes actions with a language model. The primitive tools are offered
// as function declarations; text answers are parsed with ParseAction.
type LLM struct {
	client   gollem.LLMClient
	tools    []gollem.Tool
	briefing string
	timeout  time.Duration
}

var _ interfaces.Proposer = (*LLM)(nil)

// LLMOption configures an LLM proposer
type LLMOption func(*LLM)

// WithBriefing sets the scenario text placed in every system prompt
func WithBriefing(briefing string) LLMOption {
	return func(p *LLM) {
		p.briefing = strings.TrimSpace(briefing)
	}
}

// WithTimeout bounds a single model call
func WithTimeout(d time.Duration) LLMOption {
	return func(p *LLM) {
		p.timeout = d
	}
}

// NewLLM creates a proposer backed by client
func NewLLM(client gollem.LLMClient, tools []gollem.Tool, opts ...LLMOption) *LLM {
	p := &LLM{
		client: client,
		tools:  tools,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Propose asks the model for the next action of obs.Agent
func (p *LLM) Propose(ctx context.Context, obs *model.Observation, memory interfaces.MemoryQuerier) (*model.Action, error) {
	if obs == nil {
		return nil, goerr.New("observation is required")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	session, err := p.client.NewSession(ctx,
		gollem.WithSessionSystemPrompt(buildSystemPrompt(obs.Agent, p.briefing)),
		gollem.WithSessionTools(p.tools...),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.V(model.ActorKey, obs.Agent))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(ctx, obs, memory)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate action", goerr.V(model.ActorKey, obs.Agent))
	}
	if resp == nil {
		return nil, goerr.Wrap(model.ErrMalformedAction, "empty response", goerr.V(model.ActorKey, obs.Agent))
	}

	text := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	for _, call := range resp.FunctionCalls {
		if call == nil || call.Name == "" {
			continue
		}
		if len(resp.FunctionCalls) > 1 {
			logging.From(ctx).Debug("model proposed several actions, using the first",
				slog.String("agent", obs.Agent),
				slog.Int("calls", len(resp.FunctionCalls)),
			)
		}
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return &model.Action{
			Tool:      call.Name,
			Arguments: args,
			Reasoning: text,
		}, nil
	}

	action, err := ParseAction(text)
	if err != nil {
		return nil, goerr.Wrap(err, "model answered without an action", goerr.V(model.ActorKey, obs.Agent))
	}
	return action, nil
}
