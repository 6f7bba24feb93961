package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/agent/tool"
	"github.com/secmon-lab/stratagem/pkg/agent/tool/primitive"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/memory"
	"github.com/secmon-lab/stratagem/pkg/scenario"
	"github.com/secmon-lab/stratagem/pkg/utils/errutil"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/world"
)

// Config holds the limits of one game
type Config struct {
	// MaxTime ends the game once simulated time reaches it
	MaxTime float64
	// MaxActions ends the game at a round boundary once reached. Zero means
	// no action budget.
	MaxActions int
	// TimeStep is the simulated time consumed by one action
	TimeStep float64
	// SignalWindow is the visibility window of signals in observations and receive
	SignalWindow float64
	// SignalRetention is how long signals stay on the bus
	SignalRetention float64
	// HistorySize is the number of an agent's own results shown to it
	HistorySize int
}

// DefaultConfig returns the default game limits
func DefaultConfig() Config {
	return Config{
		MaxTime:         500,
		MaxActions:      100,
		TimeStep:        1,
		SignalWindow:    primitive.DefaultSignalWindow,
		SignalRetention: 100,
		HistorySize:     5,
	}
}

// Engine runs one game of a scenario. It is the sole mutator of the game's
// world: agents act strictly one after another.
type Engine struct {
	cfg      Config
	scenario *scenario.Scenario
	proposer interfaces.Proposer
	store    *memory.Store
	repo     interfaces.MemoryRepository
	gameID   model.GameID
	now      func() time.Time

	mu    sync.RWMutex
	state types.EngineState

	stopRequested atomic.Bool

	clock    *world.Clock
	registry *world.Registry
	bus      *world.SignalBus
	exec     *primitive.Executor
	history  map[string][]*model.ToolResult
	startSeq uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig sets the game limits. Zero fields keep their defaults; a
// negative MaxActions removes the action budget.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.MaxTime > 0 {
			def.MaxTime = cfg.MaxTime
		}
		switch {
		case cfg.MaxActions > 0:
			def.MaxActions = cfg.MaxActions
		case cfg.MaxActions < 0:
			def.MaxActions = 0
		}
		if cfg.TimeStep > 0 {
			def.TimeStep = cfg.TimeStep
		}
		if cfg.SignalWindow > 0 {
			def.SignalWindow = cfg.SignalWindow
		}
		if cfg.SignalRetention > 0 {
			def.SignalRetention = cfg.SignalRetention
		}
		if cfg.HistorySize > 0 {
			def.HistorySize = cfg.HistorySize
		}
		e.cfg = def
	}
}

// WithRepository persists the memory store when the game ends
func WithRepository(repo interfaces.MemoryRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithGameID sets the game identifier instead of a random one
func WithGameID(id model.GameID) Option {
	return func(e *Engine) {
		e.gameID = id
	}
}

// WithClock sets the wall clock used for summary timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine for one game
func New(sc *scenario.Scenario, proposer interfaces.Proposer, store *memory.Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:      DefaultConfig(),
		scenario: sc,
		proposer: proposer,
		store:    store,
		gameID:   model.NewGameID(),
		now:      time.Now,
		state:    types.EngineInitializing,
		history:  make(map[string][]*model.ToolResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GameID returns the identifier of the game
func (e *Engine) GameID() model.GameID {
	return e.gameID
}

// State returns the current lifecycle state
func (e *Engine) State() types.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(ctx context.Context, s types.EngineState) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	logging.From(ctx).Debug("engine state changed",
		slog.String("game_id", string(e.gameID)),
		slog.String("from", string(prev)),
		slog.String("to", string(s)),
	)
}

// Stop asks the engine to end the game at the next round boundary
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// World returns the entity registry of the running game
func (e *Engine) World() *world.Registry {
	return e.registry
}

// Run plays the game to completion. Only setup failures are returned as
// errors; tool failures, collaborator failures and persistence failures are
// recorded and the game goes on.
func (e *Engine) Run(ctx context.Context) (*model.GameSummary, error) {
	if e.scenario == nil || e.proposer == nil || e.store == nil {
		return nil, goerr.New("engine requires a scenario, a proposer and a memory store")
	}
	logger := logging.From(ctx).With(slog.String("game_id", string(e.gameID)))
	ctx = logging.With(ctx, logger)

	summary := &model.GameSummary{
		GameID:    e.gameID,
		Scenario:  e.scenario.Name,
		StartedAt: e.now(),
	}

	if err := e.initialize(); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize game", goerr.V("scenario", e.scenario.Name))
	}
	logger.Info("game started",
		slog.String("scenario", e.scenario.Name),
		slog.Any("agents", e.scenario.Agents),
		slog.Float64("max_time", e.cfg.MaxTime),
	)

	e.setState(ctx, types.EngineRunning)
	reason, detail, rounds, actions := e.loop(ctx)
	summary.StopReason = reason
	summary.TerminalDetail = detail
	summary.Rounds = rounds
	summary.TotalActions = actions
	summary.Duration = e.clock.Now()

	e.setState(ctx, types.EngineTerminating)
	newEvents := e.store.EventsSince(e.gameID, e.startSeq)
	if _, err := e.store.Detect(ctx, e.gameID, newEvents); err != nil {
		errutil.Warn(ctx, err, "pattern detection failed at game end")
	}

	if e.repo != nil {
		if err := e.store.Save(ctx, e.repo); err != nil {
			errutil.Warn(ctx, err, "failed to persist memory, results of this game are kept in memory only")
		} else {
			summary.Persisted = true
		}
	}
	e.setState(ctx, types.EnginePersisted)

	e.summarize(summary)
	summary.State = types.EnginePersisted
	summary.FinishedAt = e.now()

	logger.Info("game finished",
		slog.String("stop_reason", string(summary.StopReason)),
		slog.Int("rounds", summary.Rounds),
		slog.Int("actions", summary.TotalActions),
		slog.Int("cooperation", summary.CooperationEvents),
		slog.Int("communication", summary.CommunicationEvents),
		slog.Int("patterns", summary.PatternEvents),
	)
	return summary, nil
}

func (e *Engine) initialize() error {
	e.clock = world.NewClock(e.cfg.TimeStep)
	e.registry = world.NewRegistry(e.clock)
	e.bus = world.NewSignalBus(e.gameID, e.clock, e.store)
	e.exec = primitive.New(e.gameID, e.registry, e.bus, e.store, primitive.WithSignalWindow(e.cfg.SignalWindow))
	e.startSeq = e.store.Seq()
	return e.scenario.Setup(e.registry)
}

func (e *Engine) loop(ctx context.Context) (types.StopReason, string, int, int) {
	logger := logging.From(ctx)
	round, actions := 0, 0

	for {
		agents := e.activeAgents()
		if len(agents) == 0 {
			return types.StopNoActiveAgent, "", round, actions
		}

		round++
		e.exec.SetRound(round)
		logger.Debug("round started", slog.Int("round", round), slog.Any("agents", agents))

		for _, agent := range agents {
			if e.interrupted(ctx) {
				return types.StopRequested, "", round, actions
			}
			// an earlier action in this round may have retired the agent
			if !e.isActive(agent) {
				continue
			}
			e.turn(ctx, agent, round)
			actions++
			e.clock.Tick()
		}

		applied := e.scenario.ApplyEffects(ctx, e.registry)
		purged := e.bus.Purge(e.cfg.SignalRetention)
		logger.Debug("round finished",
			slog.Int("round", round),
			slog.Float64("time", e.clock.Now()),
			slog.Any("effects", applied),
			slog.Int("purged_signals", purged),
		)

		switch {
		case e.interrupted(ctx):
			return types.StopRequested, "", round, actions
		case e.clock.Now() >= e.cfg.MaxTime:
			return types.StopMaxTime, "", round, actions
		case e.cfg.MaxActions > 0 && actions >= e.cfg.MaxActions:
			return types.StopMaxActions, "", round, actions
		}
		if name, ok := e.scenario.Terminal(e.registry); ok {
			return types.StopTerminal, name, round, actions
		}
	}
}

func (e *Engine) interrupted(ctx context.Context) bool {
	return e.stopRequested.Load() || ctx.Err() != nil
}

func (e *Engine) turn(ctx context.Context, agent string, round int) {
	obs := e.observe(agent, round)

	action, err := e.proposer.Propose(ctx, obs, e.store)
	var result *model.ToolResult
	if err != nil {
		kind := types.FailureProposer
		if errors.Is(err, model.ErrMalformedAction) {
			kind = types.FailureMalformedAction
		}
		logging.From(ctx).Warn("no usable action from reasoning collaborator",
			slog.String("agent", agent),
			slog.String("failure", string(kind)),
			slog.Any("error", err),
		)
		result = e.exec.RecordFailure(ctx, agent, action, kind, err)
	} else {
		result = e.exec.Dispatch(tool.WithUpdate(ctx, traceTool(agent, round)), agent, action)
	}

	h := append(e.history[agent], result)
	if len(h) > e.cfg.HistorySize {
		h = h[len(h)-e.cfg.HistorySize:]
	}
	e.history[agent] = h
}

func traceTool(agent string, round int) tool.UpdateFunc {
	return func(ctx context.Context, message string) {
		logging.From(ctx).Debug(message, slog.String("agent", agent), slog.Int("round", round))
	}
}

func (e *Engine) observe(agent string, round int) *model.Observation {
	obs := &model.Observation{
		GameID:   e.gameID,
		Scenario: e.scenario.Name,
		Agent:    agent,
		Round:    round,
		Time:     e.clock.Now(),
		MaxTime:  e.cfg.MaxTime,
		Signals:  e.bus.Receive(agent, world.SignalFilter{}, e.cfg.SignalWindow),
	}
	if self, err := e.registry.Get(agent); err == nil {
		obs.Self = self
	}

	isAgent := make(map[string]bool, len(e.scenario.Agents))
	for _, a := range e.scenario.Agents {
		isAgent[a] = true
		if a != agent {
			obs.Agents = append(obs.Agents, a)
		}
	}
	for _, id := range e.registry.IDs() {
		if !isAgent[id] {
			obs.Objects = append(obs.Objects, id)
		}
	}

	if h := e.history[agent]; len(h) > 0 {
		obs.History = append([]*model.ToolResult(nil), h...)
		obs.LastResult = h[len(h)-1]
	}
	return obs
}

func (e *Engine) activeAgents() []string {
	var out []string
	for _, a := range e.scenario.Agents {
		if e.isActive(a) {
			out = append(out, a)
		}
	}
	return out
}

// isActive treats an agent without a status property as active
func (e *Engine) isActive(agent string) bool {
	v, ok, err := e.registry.GetProperty(agent, "status")
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	s, isText := v.AsText()
	return isText && strings.EqualFold(s, "active")
}

func (e *Engine) summarize(s *model.GameSummary) {
	s.FailuresByKind = make(map[types.FailureKind]int)
	for _, ev := range e.store.GameEvents(e.gameID) {
		if !ev.Success {
			s.FailuresByKind[ev.Failure]++
			continue
		}
		s.SuccessfulActions++
		name := types.ToolName(ev.Tool)
		if name.IsCooperative() {
			s.CooperationEvents++
		}
		if name.IsCommunicative() {
			s.CommunicationEvents++
		}
	}
	for _, p := range e.store.Patterns() {
		if p.GameID == e.gameID {
			s.PatternEvents++
		}
	}

	s.Agents = make(map[string]map[string]any, len(e.scenario.Agents))
	for _, a := range e.scenario.Agents {
		if ent, err := e.registry.Get(a); err == nil {
			s.Agents[a] = ent.AllProperties()
		}
	}
}
