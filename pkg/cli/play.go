package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/cli/config"
	"github.com/secmon-lab/stratagem/pkg/engine"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdPlay() *cli.Command {
	var jsonOutput bool
	var llmCfg config.LLM
	var memoryCfg config.Memory
	var gameCfg config.Game
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the run summary as JSON",
			Sources:     cli.EnvVars("STRATAGEM_JSON"),
			Destination: &jsonOutput,
		},
	}
	flags = append(flags, gameCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, memoryCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "play",
		Aliases: []string{"p"},
		Usage:   "Play one or more games of a scenario",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := gameCfg.Validate(); err != nil {
				return err
			}
			sc, err := gameCfg.Scenario()
			if err != nil {
				return goerr.Wrap(err, "failed to load scenario")
			}

			client, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure LLM")
			}

			repo, err := memoryCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure memory")
			}
			defer safe.Close(ctx, repo)

			notifier, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure Slack")
			}

			logging.Default().Info("Play configuration",
				"scenario", sc.Name,
				"game", gameCfg,
				"llm", llmCfg,
				"memory", memoryCfg,
				"slack", slackCfg,
			)

			// the current game finishes and is persisted after an interrupt
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []engine.RunnerOption{
				engine.WithGames(gameCfg.Games()),
				engine.WithGameConfig(gameCfg.EngineConfig()),
				engine.WithEmbedder(llmCfg.Embedder(client)),
			}
			if notifier != nil {
				opts = append(opts, engine.WithNotifier(notifier))
			}

			runner := engine.NewRunner(sc, llmCfg.Proposer(client, sc.Description), repo, opts...)
			run, err := runner.Run(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to play")
			}

			if jsonOutput {
				enc := json.NewEncoder(output(c))
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return goerr.Wrap(err, "failed to encode run summary")
				}
				return nil
			}

			p := newPrinter(output(c))
			for i, g := range run.Games {
				p.game(i+1, g)
			}
			p.run(run, memoryCfg.Location())
			return nil
		},
	}
}
