package config

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/repository/file"
	"github.com/secmon-lab/stratagem/pkg/repository/firestore"
	"github.com/secmon-lab/stratagem/pkg/repository/gcs"
	"github.com/secmon-lab/stratagem/pkg/repository/memory"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Memory backends
const (
	BackendFile      = "file"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Memory holds CLI flags for the memory persistence backend
type Memory struct {
	backend    string
	file       string
	projectID  string
	databaseID string
	prefix     string
}

func (x *Memory) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory backend (file, firestore, memory)",
			Category:    "Memory",
			Value:       BackendFile,
			Sources:     cli.EnvVars("STRATAGEM_MEMORY_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "memory-file",
			Usage:       "Memory file path, or gs://bucket/object for Cloud Storage",
			Category:    "Memory",
			Value:       "memory.json",
			Sources:     cli.EnvVars("STRATAGEM_MEMORY_FILE"),
			Destination: &x.file,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Memory",
			Sources:     cli.EnvVars("STRATAGEM_FIRESTORE_PROJECT_ID"),
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Memory",
			Sources:     cli.EnvVars("STRATAGEM_FIRESTORE_DATABASE_ID"),
			Destination: &x.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the Firestore memory collections",
			Category:    "Memory",
			Sources:     cli.EnvVars("STRATAGEM_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &x.prefix,
		},
	}
}

func (x Memory) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("file", x.file),
		slog.String("project_id", x.projectID),
		slog.String("database_id", x.databaseID),
	)
}

// Location describes where memory is kept, for display
func (x *Memory) Location() string {
	switch strings.ToLower(x.backend) {
	case BackendFirestore:
		return "firestore://" + x.projectID + "/" + x.prefix
	case BackendMemory:
		return "(in process)"
	default:
		return x.file
	}
}

// Configure initializes and returns the memory repository of the configured
// backend. The caller is responsible for calling Close() on it.
func (x *Memory) Configure(ctx context.Context) (interfaces.MemoryRepository, error) {
	switch strings.ToLower(x.backend) {
	case BackendFirestore:
		if x.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, x.projectID, x.databaseID, firestore.WithCollectionPrefix(x.prefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.From(ctx).Info("Using Firestore memory",
			"project_id", x.projectID,
			"database_id", x.databaseID,
		)
		return repo, nil

	case BackendMemory:
		logging.From(ctx).Info("Using in-process memory (not persisted)")
		return memory.New(), nil

	case "", BackendFile:
		if gcs.IsURL(x.file) {
			repo, err := gcs.New(ctx, x.file)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to initialize Cloud Storage repository")
			}
			logging.From(ctx).Info("Using Cloud Storage memory", "url", x.file)
			return repo, nil
		}
		repo, err := file.New(x.file)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(FlagKey, "memory-file"))
		}
		logging.From(ctx).Info("Using memory file", "path", x.file)
		return repo, nil

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "backend must be file, firestore or memory", goerr.V(BackendKey, x.backend))
	}
}

// ProjectID returns the Firestore project ID
func (x *Memory) ProjectID() string {
	return x.projectID
}

// DatabaseID returns the Firestore database ID
func (x *Memory) DatabaseID() string {
	return x.databaseID
}

// CollectionPrefix returns the Firestore collection prefix
func (x *Memory) CollectionPrefix() string {
	return x.prefix
}
