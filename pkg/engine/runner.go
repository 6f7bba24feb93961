package engine

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/memory"
	"github.com/secmon-lab/stratagem/pkg/scenario"
	"github.com/secmon-lab/stratagem/pkg/utils/async"
	"github.com/secmon-lab/stratagem/pkg/utils/errutil"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

const (
	trendWindow     = 3
	trendRiseFactor = 1.5
	trendFallFactor = 0.5
)

// Runner plays several games of one scenario in sequence. The memory store
// is reloaded from the repository before every game, so each game starts
// from what the previous one persisted. After a failed save the store is
// kept as is so the unsaved game stays in memory.
type Runner struct {
	scenario  *scenario.Scenario
	proposer  interfaces.Proposer
	repo      interfaces.MemoryRepository
	embedder  interfaces.Embedder
	notifier  interfaces.Notifier
	cfg       Config
	storeOpts []memory.Option
	games     int

	store *memory.Store
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithGames sets the number of games to play
func WithGames(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.games = n
		}
	}
}

// WithGameConfig sets the limits applied to every game
func WithGameConfig(cfg Config) RunnerOption {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithNotifier publishes every game summary and the run summary
func WithNotifier(n interfaces.Notifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithEmbedder sets the embedder of the memory store
func WithEmbedder(e interfaces.Embedder) RunnerOption {
	return func(r *Runner) {
		r.embedder = e
	}
}

// WithStoreOptions sets options for every loaded memory store
func WithStoreOptions(opts ...memory.Option) RunnerOption {
	return func(r *Runner) {
		r.storeOpts = opts
	}
}

// NewRunner creates a multi-game runner. A nil repository keeps memory in
// process for the whole run.
func NewRunner(sc *scenario.Scenario, proposer interfaces.Proposer, repo interfaces.MemoryRepository, opts ...RunnerOption) *Runner {
	r := &Runner{
		scenario: sc,
		proposer: proposer,
		repo:     repo,
		cfg:      DefaultConfig(),
		games:    1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the memory store of the last game
func (r *Runner) Store() *memory.Store {
	return r.store
}

// Run plays the configured number of games. An interrupted context ends the
// run after the current game.
func (r *Runner) Run(ctx context.Context) (*model.RunSummary, error) {
	logger := logging.From(ctx)
	var notifications async.Group
	defer notifications.Wait()

	run := &model.RunSummary{}
	reload := true
	for i := range r.games {
		if ctx.Err() != nil {
			logger.Warn("run interrupted", slog.Int("played", i), slog.Int("planned", r.games))
			break
		}

		if r.store == nil || (r.repo != nil && reload) {
			r.store = memory.Load(ctx, r.repo, r.embedder, r.storeOpts...)
		}

		logger.Info("starting game", slog.Int("game", i+1), slog.Int("of", r.games))
		e := New(r.scenario, r.proposer, r.store, WithConfig(r.cfg), WithRepository(r.repo))
		summary, err := e.Run(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "game failed", goerr.V("game", i+1))
		}
		run.Games = append(run.Games, summary)
		reload = summary.Persisted

		if r.notifier != nil {
			notifications.Dispatch(ctx, func(ctx context.Context) error {
				if err := r.notifier.NotifyGame(ctx, summary); err != nil {
					return errutil.Handle(ctx, err, "failed to notify game summary")
				}
				return nil
			})
		}
	}

	if r.store != nil {
		stats := r.store.Stats()
		run.TotalEvents = stats.Events
		run.TotalPatterns = stats.Patterns
	}
	Analyze(run)

	if r.notifier != nil && len(run.Games) > 0 {
		notifications.Dispatch(ctx, func(ctx context.Context) error {
			if err := r.notifier.NotifyRun(ctx, run); err != nil {
				return errutil.Handle(ctx, err, "failed to notify run summary")
			}
			return nil
		})
	}
	return run, nil
}

// Analyze fills the per-game trends and classifies how cooperation evolved.
// More than three games are needed; the mean of the last three games is
// compared with the mean of the first three.
func Analyze(run *model.RunSummary) {
	run.CooperationTrend = make([]int, len(run.Games))
	run.CommunicationTrend = make([]int, len(run.Games))
	for i, g := range run.Games {
		run.CooperationTrend[i] = g.CooperationEvents
		run.CommunicationTrend[i] = g.CommunicationEvents
	}

	run.Trend = model.TrendUnknown
	if len(run.Games) <= trendWindow {
		return
	}
	run.EarlyCooperation = mean(run.CooperationTrend[:trendWindow])
	run.RecentCooperation = mean(run.CooperationTrend[len(run.CooperationTrend)-trendWindow:])

	switch {
	case run.RecentCooperation > run.EarlyCooperation*trendRiseFactor:
		run.Trend = model.TrendEmerging
	case run.RecentCooperation < run.EarlyCooperation*trendFallFactor:
		run.Trend = model.TrendDeclining
	default:
		run.Trend = model.TrendStable
	}
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0
	for _, x := range xs {
		total += x
	}
	return float64(total) / float64(len(xs))
}
