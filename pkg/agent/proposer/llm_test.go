package proposer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/agent/proposer"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

type mockSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.generateContentFn(ctx, input...)
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	session    *mockSession
	sessionErr error
	options    int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.options = len(options)
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	return c.session, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

type mockQuerier struct {
	queries []string
	hits    []*model.SearchHit
}

func (q *mockQuerier) Search(ctx context.Context, memoryType types.MemoryType, query string, limit int) ([]*model.SearchHit, error) {
	q.queries = append(q.queries, query)
	return q.hits, nil
}

func newObservation() *model.Observation {
	self := model.NewEntity("RAVEN")
	self.Set("supplies", model.Number(0))
	return &model.Observation{
		Scenario: "safehouse",
		Agent:    "RAVEN",
		Round:    2,
		Time:     4,
		Self:     self,
		Agents:   []string{"FALCON", "VIPER"},
		Signals: []*model.Signal{
			{Origin: "FALCON", Payload: model.Text("I have supplies"), Intensity: 2},
		},
		LastResult: &model.ToolResult{Tool: "transfer", Failure: types.FailureInsufficientAmount, Reason: "source balance is too low"},
	}
}

func textOf(input []gollem.Input) string {
	var sb strings.Builder
	for _, in := range input {
		if txt, ok := in.(gollem.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func TestLLMPropose(t *testing.T) {
	t.Run("uses the first function call", func(t *testing.T) {
		var prompt string
		client := &mockLLMClient{session: &mockSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				prompt = textOf(input)
				return &gollem.Response{
					Texts: []string{"FALCON offered help"},
					FunctionCalls: []*gollem.FunctionCall{
						{Name: "connect", Arguments: map[string]any{"entity_b": "FALCON", "strength": 0.5}},
						{Name: "observe", Arguments: map[string]any{"entity": "VIPER"}},
					},
				}, nil
			},
		}}
		memory := &mockQuerier{hits: []*model.SearchHit{
			{Type: types.MemoryTypePattern, Pattern: &model.Pattern{Description: "FALCON shares supplies", Confidence: 0.8}},
		}}

		p := proposer.NewLLM(client, nil, proposer.WithBriefing("You woke up in a safe house."))
		action, err := p.Propose(context.Background(), newObservation(), memory)
		gt.NoError(t, err).Required()
		gt.Value(t, action.Tool).Equal("connect")
		gt.Value(t, action.Arguments["entity_b"]).Equal("FALCON")
		gt.Value(t, action.Reasoning).Equal("FALCON offered help")
		gt.Number(t, client.options).Equal(2)

		gt.String(t, prompt).Contains("supplies=0")
		gt.String(t, prompt).Contains("I have supplies")
		gt.String(t, prompt).Contains("InsufficientAmount")
		gt.String(t, prompt).Contains("FALCON shares supplies")
		gt.Array(t, memory.queries).Length(1)
	})

	t.Run("falls back to parsing text", func(t *testing.T) {
		client := &mockLLMClient{session: &mockSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{Texts: []string{"THOUGHT: listen first\nACTION: receive({}, 10)"}}, nil
			},
		}}
		action, err := proposer.NewLLM(client, nil).Propose(context.Background(), newObservation(), nil)
		gt.NoError(t, err).Required()
		gt.Value(t, action.Tool).Equal("receive")
		gt.Value(t, action.Arguments["window"]).Equal(10.0)
	})

	t.Run("unparseable text is malformed", func(t *testing.T) {
		client := &mockLLMClient{session: &mockSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{Texts: []string{"I need more time to think."}}, nil
			},
		}}
		_, err := proposer.NewLLM(client, nil).Propose(context.Background(), newObservation(), nil)
		gt.Error(t, err).Is(model.ErrMalformedAction)
	})

	t.Run("transport errors are returned", func(t *testing.T) {
		cause := errors.New("connection reset")
		client := &mockLLMClient{sessionErr: cause}
		_, err := proposer.NewLLM(client, nil).Propose(context.Background(), newObservation(), nil)
		gt.Error(t, err).Is(cause)
	})
}
