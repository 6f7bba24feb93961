package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/agent/proposer"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/engine"
	"github.com/secmon-lab/stratagem/pkg/memory"
	repomem "github.com/secmon-lab/stratagem/pkg/repository/memory"
	"github.com/secmon-lab/stratagem/pkg/scenario"
)

const trioScenario = `
name = "trio"
agents = ["RAVEN", "FALCON", "VIPER"]

[[entity]]
id = "RAVEN"
properties = { role = "agent", status = "active", supplies = 0.0 }

[[entity]]
id = "FALCON"
properties = { role = "agent", status = "active", supplies = 10.0 }

[[entity]]
id = "VIPER"
properties = { role = "agent", status = "active", supplies = 5.0 }

[[entity]]
id = "crate"
properties = { contents = "rope" }
`

func newScenario(t *testing.T, extra string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse([]byte(trioScenario + extra))
	gt.NoError(t, err).Required()
	return sc
}

func newStore() *memory.Store {
	return memory.New(embedding.NewHash(0))
}

func supplies(t *testing.T, e *engine.Engine, id string) float64 {
	t.Helper()
	v, ok, err := e.World().GetProperty(id, "supplies")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()
	n, ok := v.AsNumber()
	gt.Bool(t, ok).True()
	return n
}

func TestCooperativeGame(t *testing.T) {
	repo := repomem.New()
	store := newStore()
	p := proposer.NewScripted().
		For("RAVEN", proposer.Do(types.ToolConnect, map[string]any{"entity_a": "RAVEN", "entity_b": "FALCON", "strength": 0.5})).
		For("FALCON", proposer.Do(types.ToolTransfer, map[string]any{"property": "supplies", "from": "FALCON", "to": "RAVEN", "amount": 10}))

	e := engine.New(newScenario(t, ""), p, store,
		engine.WithConfig(engine.Config{MaxActions: 3}),
		engine.WithRepository(repo),
	)
	summary, err := e.Run(context.Background())
	gt.NoError(t, err).Required()

	gt.Value(t, summary.StopReason).Equal(types.StopMaxActions)
	gt.Value(t, summary.State).Equal(types.EnginePersisted)
	gt.Value(t, e.State()).Equal(types.EnginePersisted)
	gt.Number(t, summary.Rounds).Equal(1)
	gt.Number(t, summary.TotalActions).Equal(3)
	gt.Number(t, summary.SuccessfulActions).Equal(3)
	gt.Number(t, summary.CooperationEvents).Equal(2)
	gt.Number(t, summary.Duration).Equal(3)
	gt.Bool(t, summary.Persisted).True()
	gt.Value(t, summary.GameID).Equal(e.GameID())

	gt.Number(t, supplies(t, e, "FALCON")).Equal(0)
	gt.Number(t, supplies(t, e, "RAVEN")).Equal(10)
	gt.Map(t, summary.Agents).HasKey("RAVEN")

	rels := e.World().RelationshipsOf("RAVEN")
	gt.Array(t, rels).Length(1).Required()
	gt.Value(t, rels[0].Target).Equal("FALCON")

	events := store.GameEvents(e.GameID())
	gt.Array(t, events).Length(3).Required()
	gt.Value(t, events[0].Actor).Equal("RAVEN")
	gt.Value(t, events[1].Actor).Equal("FALCON")
	gt.Value(t, events[2].Actor).Equal("VIPER")
	gt.Value(t, events[2].Tool).Equal(string(types.ToolObserve))

	gt.Number(t, repo.Saves()).Equal(1)
	snap, err := repo.Load(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, snap.Events).Length(3)
	gt.Array(t, snap.Relationships).Length(1)
}

func TestObservations(t *testing.T) {
	p := proposer.NewScripted()
	e := engine.New(newScenario(t, ""), p, newStore(), engine.WithConfig(engine.Config{MaxActions: 6}))
	_, err := e.Run(context.Background())
	gt.NoError(t, err).Required()

	obs := p.Observations()
	gt.Array(t, obs).Length(6).Required()

	first := obs[0]
	gt.Value(t, first.Agent).Equal("RAVEN")
	gt.Number(t, first.Round).Equal(1)
	gt.Number(t, first.Time).Equal(0)
	gt.Array(t, first.Agents).Length(2)
	gt.Array(t, first.Objects).Length(1)
	gt.Value(t, first.Objects[0]).Equal("crate")
	gt.Value(t, first.LastResult).Nil()
	gt.Value(t, first.Self).NotNil()

	second := obs[3]
	gt.Value(t, second.Agent).Equal("RAVEN")
	gt.Number(t, second.Round).Equal(2)
	gt.Number(t, second.Time).Equal(3)
	gt.Value(t, second.LastResult).NotNil()
	gt.Array(t, second.History).Length(1)
}

func TestStopReasons(t *testing.T) {
	t.Run("max time", func(t *testing.T) {
		e := engine.New(newScenario(t, ""), proposer.NewScripted(), newStore(),
			engine.WithConfig(engine.Config{MaxTime: 6, MaxActions: -1}))
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopMaxTime)
		gt.Number(t, summary.Rounds).Equal(2)
		gt.Number(t, summary.TotalActions).Equal(6)
		gt.Number(t, summary.Duration).Equal(6)
	})

	t.Run("time step scales simulated time", func(t *testing.T) {
		e := engine.New(newScenario(t, ""), proposer.NewScripted(), newStore(),
			engine.WithConfig(engine.Config{MaxTime: 6, MaxActions: -1, TimeStep: 2}))
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopMaxTime)
		gt.Number(t, summary.Rounds).Equal(1)
	})

	t.Run("action budget ends at round boundary", func(t *testing.T) {
		e := engine.New(newScenario(t, ""), proposer.NewScripted(), newStore(),
			engine.WithConfig(engine.Config{MaxActions: 4}))
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopMaxActions)
		gt.Number(t, summary.TotalActions).Equal(6)
	})

	t.Run("terminal condition", func(t *testing.T) {
		sc := newScenario(t, `
[[terminal]]
name = "raven supplied"
condition = "id:RAVEN and supplies>=10"
`)
		p := proposer.NewScripted().
			For("FALCON", proposer.Do(types.ToolTransfer, map[string]any{"property": "supplies", "from": "FALCON", "to": "RAVEN", "amount": 10}))
		e := engine.New(sc, p, newStore())
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopTerminal)
		gt.Value(t, summary.TerminalDetail).Equal("raven supplied")
		gt.Number(t, summary.Rounds).Equal(1)
	})

	t.Run("no active agent", func(t *testing.T) {
		escape := func(id string) proposer.Step {
			return proposer.Do(types.ToolModify, map[string]any{"entity": id, "property": "status", "operation": "set", "value": "escaped"})
		}
		p := proposer.NewScripted().
			For("RAVEN", escape("RAVEN")).
			For("FALCON", escape("FALCON")).
			For("VIPER", escape("VIPER"))
		e := engine.New(newScenario(t, ""), p, newStore(), engine.WithConfig(engine.Config{MaxActions: -1}))
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopNoActiveAgent)
		gt.Number(t, summary.Rounds).Equal(1)
		gt.Number(t, summary.TotalActions).Equal(3)
	})

	t.Run("retired agent is skipped in the same round", func(t *testing.T) {
		p := proposer.NewScripted().
			For("RAVEN", proposer.Do(types.ToolModify, map[string]any{"entity": "VIPER", "property": "status", "operation": "set", "value": "captured"}))
		store := newStore()
		e := engine.New(newScenario(t, ""), p, store, engine.WithConfig(engine.Config{MaxActions: 2}))
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Number(t, summary.TotalActions).Equal(2)
		for _, ev := range store.GameEvents(e.GameID()) {
			gt.Value(t, ev.Actor).NotEqual("VIPER")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := engine.New(newScenario(t, ""), proposer.NewScripted(), newStore())
		summary, err := e.Run(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopRequested)
		gt.Number(t, summary.TotalActions).Equal(0)
	})

	t.Run("stop request", func(t *testing.T) {
		sp := &stoppingProposer{}
		e := engine.New(newScenario(t, ""), sp, newStore())
		sp.engine = e
		summary, err := e.Run(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, summary.StopReason).Equal(types.StopRequested)
		gt.Number(t, summary.TotalActions).Equal(1)
		gt.Number(t, sp.calls).Equal(1)
	})
}

type stoppingProposer struct {
	engine *engine.Engine
	calls  int
}

func (p *stoppingProposer) Propose(_ context.Context, obs *model.Observation, _ interfaces.MemoryQuerier) (*model.Action, error) {
	p.calls++
	p.engine.Stop()
	return &model.Action{Tool: string(types.ToolObserve), Arguments: map[string]any{"entity": obs.Agent}}, nil
}

func TestProposalFailures(t *testing.T) {
	store := newStore()
	p := proposer.NewScripted().
		For("RAVEN", proposer.Say("I am not sure what to do.")).
		For("FALCON", proposer.Fail(errors.New("connection reset"))).
		For("VIPER", proposer.Do("teleport", map[string]any{"to": "exit"}))

	e := engine.New(newScenario(t, ""), p, store, engine.WithConfig(engine.Config{MaxActions: 3}))
	summary, err := e.Run(context.Background())
	gt.NoError(t, err).Required()

	gt.Number(t, summary.TotalActions).Equal(3)
	gt.Number(t, summary.SuccessfulActions).Equal(0)
	gt.Number(t, summary.FailedActions()).Equal(3)
	gt.Number(t, summary.FailuresByKind[types.FailureMalformedAction]).Equal(1)
	gt.Number(t, summary.FailuresByKind[types.FailureProposer]).Equal(1)
	gt.Number(t, summary.FailuresByKind[types.FailureUnknownTool]).Equal(1)

	events := store.GameEvents(e.GameID())
	gt.Array(t, events).Length(3).Required()
	for _, ev := range events {
		gt.Bool(t, ev.Success).False()
	}
	gt.Value(t, events[0].Failure).Equal(types.FailureMalformedAction)
	gt.Value(t, events[1].Failure).Equal(types.FailureProposer)
}

type failingRepository struct{}

func (failingRepository) Load(context.Context) (*model.MemorySnapshot, error) { return nil, nil }
func (failingRepository) Save(context.Context, *model.MemorySnapshot) error {
	return goerr.New("disk full")
}
func (failingRepository) Close() error { return nil }

func TestPersistenceFailureKeepsResults(t *testing.T) {
	store := newStore()
	e := engine.New(newScenario(t, ""), proposer.NewScripted(), store,
		engine.WithConfig(engine.Config{MaxActions: 3}),
		engine.WithRepository(failingRepository{}),
	)
	summary, err := e.Run(context.Background())
	gt.NoError(t, err).Required()
	gt.Bool(t, summary.Persisted).False()
	gt.Value(t, summary.State).Equal(types.EnginePersisted)
	gt.Array(t, store.GameEvents(e.GameID())).Length(3)
}

func TestScenarioEffectsApplyPerRound(t *testing.T) {
	sc := newScenario(t, `
[[entity]]
id = "environment"
properties = { threat_level = 0.0 }

[[effect]]
name = "threat escalation"
target = "id:environment"
property = "threat_level"
operation = "add"
value = 0.25
max = 1.0

[[terminal]]
name = "critical threat"
condition = "id:environment and threat_level>=0.95"
`)
	e := engine.New(sc, proposer.NewScripted(), newStore(), engine.WithConfig(engine.Config{MaxActions: -1}))
	summary, err := e.Run(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, summary.StopReason).Equal(types.StopTerminal)
	gt.Value(t, summary.TerminalDetail).Equal("critical threat")
	gt.Number(t, summary.Rounds).Equal(4)
}

func TestRunRequiresCollaborators(t *testing.T) {
	e := engine.New(nil, proposer.NewScripted(), newStore())
	_, err := e.Run(context.Background())
	gt.Error(t, err)
}

func TestGameIDOption(t *testing.T) {
	e := engine.New(newScenario(t, ""), proposer.NewScripted(), newStore(), engine.WithGameID("game-1"))
	gt.Value(t, e.GameID()).Equal(model.GameID("game-1"))
	gt.Value(t, e.State()).Equal(types.EngineInitializing)
}
