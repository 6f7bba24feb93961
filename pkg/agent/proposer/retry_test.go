package proposer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/agent/proposer"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

func TestRetry(t *testing.T) {
	obs := &model.Observation{Agent: "RAVEN"}
	fast := proposer.WithInterval(time.Millisecond, 2*time.Millisecond)

	t.Run("recovers after transient failures", func(t *testing.T) {
		inner := proposer.NewScripted(
			proposer.Fail(errors.New("timeout")),
			proposer.Say("no idea"),
			proposer.Do(types.ToolObserve, map[string]any{"entity": "FALCON"}),
		)
		r := proposer.WithRetry(inner, 3, fast)

		action, err := r.Propose(context.Background(), obs, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, action.Tool).Equal("observe")
		gt.Number(t, r.Attempts()).Equal(3)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		inner := proposer.NewScripted(
			proposer.Say("hmm"),
			proposer.Say("hmm"),
			proposer.Say("hmm"),
			proposer.Do(types.ToolObserve, map[string]any{"entity": "FALCON"}),
		)
		r := proposer.WithRetry(inner, 2, fast)

		_, err := r.Propose(context.Background(), obs, nil)
		gt.Error(t, err).Is(model.ErrMalformedAction)
		gt.Number(t, r.Attempts()).Equal(3)
	})

	t.Run("does not retry a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := proposer.WithRetry(proposer.NewScripted(), 5, fast)
		_, err := r.Propose(ctx, obs, nil)
		gt.Error(t, err).Is(context.Canceled)
		gt.Number(t, r.Attempts()).Equal(1)
	})
}

func TestScripted(t *testing.T) {
	p := proposer.NewScripted(proposer.Do(types.ToolReceive, nil)).
		For("FALCON", proposer.Do(types.ToolSignal, map[string]any{"message": "hi"}))

	action, err := p.Propose(context.Background(), &model.Observation{Agent: "FALCON"}, nil)
	gt.NoError(t, err).Required()
	gt.Value(t, action.Tool).Equal("signal")

	action, err = p.Propose(context.Background(), &model.Observation{Agent: "FALCON"}, nil)
	gt.NoError(t, err).Required()
	gt.Value(t, action.Tool).Equal("receive")

	action, err = p.Propose(context.Background(), &model.Observation{Agent: "VIPER"}, nil)
	gt.NoError(t, err).Required()
	gt.Value(t, action.Tool).Equal("observe")
	gt.Value(t, action.Arguments["entity"]).Equal("VIPER")

	gt.Array(t, p.Observations()).Length(3)
}
