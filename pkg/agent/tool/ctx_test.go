package tool_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
)

func TestUpdate(t *testing.T) {
	var messages []string
	ctx := tool.WithUpdate(context.Background(), func(_ context.Context, msg string) {
		messages = append(messages, msg)
	})

	tool.Update(ctx, "observing DOOR")
	tool.Update(context.Background(), "dropped")

	gt.Value(t, messages).Equal([]string{"observing DOOR"})
}

func TestActor(t *testing.T) {
	gt.Value(t, tool.Actor(context.Background())).Equal("")
	gt.Value(t, tool.Actor(tool.WithActor(context.Background(), "RAVEN"))).Equal("RAVEN")
}
