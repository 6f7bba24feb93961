package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/cli/config"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/repository/firestore"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var memoryCfg config.Memory
	var dimension int
	var dryRun bool

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Dimension of the event vector index (256 for hash, 768 for llm embedder)",
			Value:       embedding.DefaultHashDimension,
			Sources:     cli.EnvVars("STRATAGEM_EMBEDDING_DIMENSION"),
			Destination: &dimension,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, memoryCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore indexes of the memory collections",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if memoryCfg.ProjectID() == "" {
				return goerr.Wrap(config.ErrInvalidConfig, "firestore-project-id is required",
					goerr.V(config.FlagKey, "firestore-project-id"))
			}
			if dimension <= 0 {
				return goerr.Wrap(config.ErrInvalidConfig, "embedding dimension must be positive",
					goerr.V(config.FlagKey, "embedding-dimension"), goerr.V(config.ValueKey, dimension))
			}

			logger := logging.From(ctx)
			logger.Info("Migrate configuration",
				"memory", memoryCfg,
				"dimension", dimension,
				"dryRun", dryRun)

			client, err := fireconf.NewClient(ctx, memoryCfg.ProjectID(), memoryCfg.DatabaseID())
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			indexes := getIndexConfig(memoryCfg.CollectionPrefix(), dimension)
			if dryRun {
				plan, err := client.GetMigrationPlan(ctx, indexes)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}
				p := newPrinter(output(c))
				fmt.Fprintln(p.w, p.title.Sprintf("Migration plan (%d steps)", len(plan.Steps)))
				for _, step := range plan.Steps {
					mark := p.good.Sprint("+")
					if step.Destructive {
						mark = p.bad.Sprint("!")
					}
					fmt.Fprintf(p.w, "  %s %s %s %s\n", mark, step.Collection, step.Operation, p.dimmed.Sprint(step.Description))
				}
				return nil
			}

			if err := client.Migrate(ctx, indexes); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Indexes are up to date", "collection", indexes.Collections[0].Name)
			return nil
		},
	}
}

// getIndexConfig returns the indexes needed by GameEvents and NearestEvents
func getIndexConfig(prefix string, dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefix + firestore.EventsCollection,
				Indexes: []fireconf.Index{
					{
						Fields: []fireconf.IndexField{
							{Path: "GameID", Order: fireconf.OrderAscending},
							{Path: "Seq", Order: fireconf.OrderAscending},
						},
					},
					{
						Fields: []fireconf.IndexField{
							{Path: "Embedding", Vector: &fireconf.VectorConfig{Dimension: dimension}},
						},
					},
				},
			},
		},
	}
}
