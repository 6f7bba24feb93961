package cli

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/cli/config"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/memory"
	"github.com/secmon-lab/stratagem/pkg/repository/firestore"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

type inspectOutput struct {
	Location      string                      `json:"location"`
	Stats         memory.Stats                `json:"stats"`
	Patterns      []*model.Pattern            `json:"patterns,omitempty"`
	Relationships []*model.RelationshipRecord `json:"relationships,omitempty"`
	Events        []*model.MemoryEvent        `json:"events,omitempty"`
	Hits          []*model.SearchHit          `json:"hits,omitempty"`
}

func cmdInspect() *cli.Command {
	var (
		memoryCfg    config.Memory
		query        string
		memType      string
		limit        int
		gameID       string
		vectorSearch bool
		jsonOutput   bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Search memory by similarity",
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "Memory type to search (event, pattern, relationship)",
			Value:       string(types.MemoryTypeEvent),
			Destination: &memType,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of records to show",
			Value:       10,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "game",
			Usage:       "Show the events of one game",
			Destination: &gameID,
		},
		&cli.BoolFlag{
			Name:        "vector-search",
			Usage:       "Run event searches as a Firestore vector query (firestore backend only)",
			Destination: &vectorSearch,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print as JSON",
			Destination: &jsonOutput,
		},
	}
	flags = append(flags, memoryCfg.Flags()...)

	return &cli.Command{
		Name:    "inspect",
		Aliases: []string{"i"},
		Usage:   "Show what the persistent memory holds",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			mt, ok := types.ParseMemoryType(memType)
			if !ok {
				return goerr.Wrap(config.ErrInvalidConfig, "unknown memory type",
					goerr.V(config.FlagKey, "type"), goerr.V(config.ValueKey, memType))
			}

			repo, err := memoryCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure memory")
			}
			defer safe.Close(ctx, repo)

			embedder := embedding.NewHash(0)
			store := memory.Load(ctx, repo, embedder)

			out := inspectOutput{
				Location: memoryCfg.Location(),
				Stats:    store.Stats(),
				Patterns: lastN(store.Patterns(), limit),
			}
			if rels := store.Relationships(); len(rels) > 0 {
				out.Relationships = lastN(rels, limit)
			}

			if gameID != "" {
				out.Events, err = gameEvents(ctx, repo, store, model.GameID(gameID))
				if err != nil {
					return err
				}
			}

			if query != "" {
				if vectorSearch && mt == types.MemoryTypeEvent {
					out.Hits, err = nearestEvents(ctx, repo, embedder, query, limit)
				} else {
					out.Hits, err = store.Search(ctx, mt, query, limit)
				}
				if err != nil {
					return goerr.Wrap(err, "failed to search memory", goerr.V("query", query))
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(output(c))
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return goerr.Wrap(err, "failed to encode memory")
				}
				return nil
			}

			p := newPrinter(output(c))
			p.stats(out.Location, out.Stats)
			p.patterns(out.Patterns)
			if gameID != "" {
				p.events("Game "+gameID, out.Events)
			}
			if query != "" {
				p.hits(query, mt, out.Hits)
			}
			return nil
		},
	}
}

// gameEvents reads one game's events from Firestore directly when possible;
// other backends are served from the loaded store.
func gameEvents(ctx context.Context, repo interfaces.MemoryRepository, store *memory.Store, gameID model.GameID) ([]*model.MemoryEvent, error) {
	if fs, ok := repo.(*firestore.Firestore); ok {
		events, err := fs.GameEvents(ctx, gameID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query game events")
		}
		return events, nil
	}
	return store.GameEvents(gameID), nil
}

func nearestEvents(ctx context.Context, repo interfaces.MemoryRepository, embedder interfaces.Embedder, query string, limit int) ([]*model.SearchHit, error) {
	fs, ok := repo.(*firestore.Firestore)
	if !ok {
		return nil, goerr.Wrap(config.ErrInvalidConfig, "vector search needs the firestore backend",
			goerr.V(config.FlagKey, "vector-search"))
	}

	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	events, err := fs.NearestEvents(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]*model.SearchHit, 0, len(events))
	for _, ev := range events {
		hits = append(hits, &model.SearchHit{
			Type:  types.MemoryTypeEvent,
			Event: ev,
			Score: embedding.Cosine(vector, ev.Embedding),
		})
	}
	logging.From(ctx).Debug("vector search done", slog.String("query", query), slog.Int("hits", len(hits)))
	return hits, nil
}

func lastN[T any](xs []T, n int) []T {
	if n <= 0 || len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
