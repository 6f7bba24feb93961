package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/engine"
	"github.com/secmon-lab/stratagem/pkg/scenario"
	"github.com/urfave/cli/v3"
)

// Game holds CLI flags for the scenario and the limits of every game
type Game struct {
	games           int
	scenario        string
	scenarioFile    string
	maxTime         float64
	maxActions      int
	timeStep        float64
	signalWindow    float64
	signalRetention float64
}

func (x *Game) Flags() []cli.Flag {
	def := engine.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "games",
			Aliases:     []string{"n"},
			Usage:       "Number of games to play",
			Category:    "Game",
			Value:       1,
			Sources:     cli.EnvVars("STRATAGEM_GAMES"),
			Destination: &x.games,
		},
		&cli.StringFlag{
			Name:        "scenario",
			Aliases:     []string{"s"},
			Usage:       "Built-in scenario name",
			Category:    "Game",
			Value:       scenario.DefaultName,
			Sources:     cli.EnvVars("STRATAGEM_SCENARIO"),
			Destination: &x.scenario,
		},
		&cli.StringFlag{
			Name:        "scenario-file",
			Usage:       "Custom scenario TOML file (overrides --scenario)",
			Category:    "Game",
			Sources:     cli.EnvVars("STRATAGEM_SCENARIO_FILE"),
			Destination: &x.scenarioFile,
		},
		&cli.FloatFlag{
			Name:        "max-time",
			Usage:       "Simulated time limit of a game",
			Category:    "Game",
			Value:       def.MaxTime,
			Sources:     cli.EnvVars("STRATAGEM_MAX_TIME"),
			Destination: &x.maxTime,
		},
		&cli.IntFlag{
			Name:        "max-actions",
			Usage:       "Action budget of a game (negative for unlimited)",
			Category:    "Game",
			Value:       def.MaxActions,
			Sources:     cli.EnvVars("STRATAGEM_MAX_ACTIONS"),
			Destination: &x.maxActions,
		},
		&cli.FloatFlag{
			Name:        "time-step",
			Usage:       "Simulated time consumed by one action",
			Category:    "Game",
			Value:       def.TimeStep,
			Sources:     cli.EnvVars("STRATAGEM_TIME_STEP"),
			Destination: &x.timeStep,
		},
		&cli.FloatFlag{
			Name:        "signal-window",
			Usage:       "How far back in simulated time signals can be received",
			Category:    "Game",
			Value:       def.SignalWindow,
			Sources:     cli.EnvVars("STRATAGEM_SIGNAL_WINDOW"),
			Destination: &x.signalWindow,
		},
		&cli.FloatFlag{
			Name:        "signal-retention",
			Usage:       "How long signals stay on the bus",
			Category:    "Game",
			Value:       def.SignalRetention,
			Sources:     cli.EnvVars("STRATAGEM_SIGNAL_RETENTION"),
			Destination: &x.signalRetention,
		},
	}
}

func (x Game) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("games", x.games),
		slog.String("scenario", x.scenario),
		slog.String("scenario_file", x.scenarioFile),
		slog.Float64("max_time", x.maxTime),
		slog.Int("max_actions", x.maxActions),
		slog.Float64("time_step", x.timeStep),
	)
}

// Validate rejects limits that cannot produce a game
func (x *Game) Validate() error {
	if x.games < 1 {
		return goerr.Wrap(ErrInvalidConfig, "games must be at least 1", goerr.V(FlagKey, "games"), goerr.V(ValueKey, x.games))
	}
	if x.maxTime <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "max-time must be positive", goerr.V(FlagKey, "max-time"), goerr.V(ValueKey, x.maxTime))
	}
	if x.timeStep <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "time-step must be positive", goerr.V(FlagKey, "time-step"), goerr.V(ValueKey, x.timeStep))
	}
	if x.signalWindow < 0 || x.signalRetention < 0 {
		return goerr.Wrap(ErrInvalidConfig, "signal window and retention must not be negative")
	}
	return nil
}

// Games returns the number of games to play
func (x *Game) Games() int {
	return x.games
}

// Scenario loads the selected scenario
func (x *Game) Scenario() (*scenario.Scenario, error) {
	if x.scenarioFile != "" {
		return scenario.LoadFile(x.scenarioFile)
	}
	return scenario.Load(x.scenario)
}

// EngineConfig returns the limits of every game
func (x *Game) EngineConfig() engine.Config {
	return engine.Config{
		MaxTime:         x.maxTime,
		MaxActions:      x.maxActions,
		TimeStep:        x.timeStep,
		SignalWindow:    x.signalWindow,
		SignalRetention: x.signalRetention,
	}
}
