package memory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/memory"
)

func connectEvent(gameID model.GameID, a, b string, strength float64) *model.MemoryEvent {
	return newEvent(gameID, a, types.ToolConnect, map[string]model.Value{
		"entity_a": model.Text(a),
		"entity_b": model.Text(b),
		"strength": model.Number(strength),
	})
}

func transferEvent(gameID model.GameID, from, to string) *model.MemoryEvent {
	return newEvent(gameID, from, types.ToolTransfer, map[string]model.Value{
		"property": model.Text("supplies"),
		"from":     model.Text(from),
		"to":       model.Text(to),
		"amount":   model.Number(1),
	})
}

func hasPrefix(patterns []*model.Pattern, prefix string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(p.Description, prefix) {
			return true
		}
	}
	return false
}

func TestDetectorCadence(t *testing.T) {
	d := memory.NewDetector()
	gt.Bool(t, d.Due(3)).False()
	gt.Bool(t, d.Due(5)).False()
	gt.Bool(t, d.Due(6)).True()
	gt.Bool(t, d.Due(9)).True()
}

func TestWritePathDetection(t *testing.T) {
	ctx := context.Background()
	store := memory.New(embedding.NewHash(0))
	gameID := model.NewGameID()

	events := []*model.MemoryEvent{
		connectEvent(gameID, "RAVEN", "FALCON", 0.5),
		transferEvent(gameID, "FALCON", "RAVEN"),
		newEvent(gameID, "VIPER", types.ToolObserve, nil),
		newEvent(gameID, "VIPER", types.ToolObserve, nil),
		transferEvent(gameID, "RAVEN", "FALCON"),
	}
	for _, ev := range events {
		_, err := store.RecordEvent(ctx, ev)
		gt.NoError(t, err).Required()
	}
	gt.Array(t, store.Patterns()).Length(0)

	_, err := store.RecordEvent(ctx, connectEvent(gameID, "RAVEN", "FALCON", -0.8))
	gt.NoError(t, err).Required()

	patterns := store.Patterns()
	gt.Bool(t, hasPrefix(patterns, "Cooperation Emergence")).True()
	gt.Bool(t, hasPrefix(patterns, "Betrayal: RAVEN withdrew trust from FALCON")).True()
	gt.Bool(t, hasPrefix(patterns, "Reciprocity: FALCON and RAVEN")).True()
	for _, p := range patterns {
		gt.Value(t, p.Discoverer).Equal(memory.DetectorName)
		gt.Value(t, p.GameID).Equal(gameID)
	}

	t.Run("identical findings are not duplicated", func(t *testing.T) {
		before := len(store.Patterns())
		created, err := store.Detect(ctx, gameID, store.GameEvents(gameID))
		gt.NoError(t, err).Required()

		// the full game equals the window, so every finding already exists
		gt.Array(t, created).Length(0)
		gt.Array(t, store.Patterns()).Length(before)
	})
}

func TestDetectCommunication(t *testing.T) {
	gameID := model.NewGameID()
	events := []*model.MemoryEvent{
		newEvent(gameID, "RAVEN", types.ToolSignal, nil),
		newEvent(gameID, "FALCON", types.ToolReceive, nil),
		newEvent(gameID, "FALCON", types.ToolSignal, nil),
	}

	var names []string
	for _, f := range memory.NewDetector().Scan(events) {
		names = append(names, f.Description)
	}
	joined := strings.Join(names, "|")
	gt.String(t, joined).Contains("Communication Network")
	gt.Bool(t, strings.Contains(joined, "Cooperation Emergence")).False()
}

func TestDetectToolDiversity(t *testing.T) {
	gameID := model.NewGameID()
	var events []*model.MemoryEvent
	for _, tool := range []types.ToolName{types.ToolObserve, types.ToolQuery, types.ToolStore, types.ToolCompute, types.ToolModify} {
		events = append(events, newEvent(gameID, "RAVEN", tool, nil))
	}
	findings := memory.NewDetector().Scan(events)
	gt.Array(t, findings).Length(1)
	gt.String(t, findings[0].Description).Contains("Tool Diversity")
}
