package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/cli"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/repository/codec"
)

func init() {
	color.NoColor = true
}

func TestPrintGame(t *testing.T) {
	var buf bytes.Buffer
	cli.PrintGame(&buf, 2, &model.GameSummary{
		GameID:            "game-1",
		Scenario:          "safehouse",
		StopReason:        types.StopTerminal,
		TerminalDetail:    "supplies exhausted",
		Rounds:            4,
		Duration:          4,
		TotalActions:      12,
		SuccessfulActions: 10,
		CooperationEvents: 3,
		FailuresByKind: map[types.FailureKind]int{
			types.FailureUnknownTool: 2,
		},
		Agents: map[string]map[string]any{
			"RAVEN": {"supplies": 5.0, "status": "active"},
		},
		Persisted: true,
	})

	out := buf.String()
	gt.String(t, out).Contains("Game 2  game-1")
	gt.String(t, out).Contains("supplies exhausted")
	gt.String(t, out).Contains("2 failed")
	gt.String(t, out).Contains("status=active supplies=5")
	gt.String(t, out).Contains("saved")
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	cli.PrintRun(&buf, &model.RunSummary{
		Games:             []*model.GameSummary{{Duration: 2}, {Duration: 4}},
		TotalEvents:       20,
		CooperationTrend:  []int{1, 3},
		Trend:             model.TrendEmerging,
		EarlyCooperation:  1,
		RecentCooperation: 3,
	}, "memory.json")

	out := buf.String()
	gt.String(t, out).Contains("Run summary (2 games)")
	gt.String(t, out).Contains("memory.json")
	gt.String(t, out).Contains("1 3")
	gt.String(t, out).Contains(string(model.TrendEmerging))
}

func TestIndexConfig(t *testing.T) {
	cfg := cli.IndexConfig("test_", 256)
	gt.Array(t, cfg.Collections).Length(1).Required()
	gt.Value(t, cfg.Collections[0].Name).Equal("test_memory_events")
	gt.Array(t, cfg.Collections[0].Indexes).Length(2).Required()
	gt.Value(t, cfg.Collections[0].Indexes[1].Fields[0].Vector.Dimension).Equal(256)
}

func TestLastN(t *testing.T) {
	xs := []int{1, 2, 3, 4}
	gt.Value(t, cli.LastN(xs, 2)).Equal([]int{3, 4})
	gt.Value(t, cli.LastN(xs, 0)).Equal(xs)
	gt.Value(t, cli.LastN(xs, 10)).Equal(xs)
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	data, err := codec.Encode(&model.MemorySnapshot{
		Events: []*model.MemoryEvent{
			{ID: "e1", Seq: 1, GameID: "g1", Actor: "RAVEN", Tool: "observe", Success: true},
		},
		Patterns:      []*model.Pattern{},
		Relationships: []*model.RelationshipRecord{},
		Signals:       []*model.Signal{},
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, os.WriteFile(path, data, 0o600)).Required()

	err = cli.Run(t.Context(), []string{
		"stratagem", "--log-output", "-",
		"inspect", "--memory-file", path, "--game", "g1", "--query", "observe", "--json",
	}, "test")
	gt.NoError(t, err)
}

func TestInspectRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	err := cli.Run(t.Context(), []string{
		"stratagem", "inspect", "--memory-file", path, "--type", "weather",
	}, "test")
	gt.Error(t, err)
}
