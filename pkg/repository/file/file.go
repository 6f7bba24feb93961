// Package file persists the memory snapshot as a local JSON file.
package file

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/repository/codec"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/utils/safe"
)

// Repository stores the snapshot at a single path. Writes go to a temporary
// file in the same directory which is then renamed over the target.
type Repository struct {
	path string
}

var _ interfaces.MemoryRepository = (*Repository)(nil)

// New creates a file repository. The file does not need to exist.
func New(path string) (*Repository, error) {
	if path == "" {
		return nil, goerr.New("memory file path is required")
	}
	return &Repository{path: path}, nil
}

// Path returns the snapshot file path
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) Load(ctx context.Context) (*model.MemorySnapshot, error) {
	// #nosec G304 - path is provided by CLI argument
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.From(ctx).Debug("memory file not found", slog.String("path", r.path))
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read memory file", goerr.V("path", r.path))
	}

	snap, err := codec.Decode(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory file", goerr.V("path", r.path))
	}
	return snap, nil
}

func (r *Repository) Save(ctx context.Context, snapshot *model.MemorySnapshot) error {
	data, err := codec.Encode(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return goerr.Wrap(err, "failed to create memory directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary memory file", goerr.V("dir", dir))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			safe.Remove(ctx, tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		safe.Close(ctx, tmp)
		return goerr.Wrap(err, "failed to write memory file", goerr.V("path", tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		safe.Close(ctx, tmp)
		return goerr.Wrap(err, "failed to sync memory file", goerr.V("path", tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close memory file", goerr.V("path", tmpPath))
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return goerr.Wrap(err, "failed to replace memory file", goerr.V("path", r.path))
	}
	committed = true

	logging.From(ctx).Debug("memory saved",
		slog.String("path", r.path),
		slog.Int("events", len(snapshot.Events)),
		slog.Int("patterns", len(snapshot.Patterns)),
	)
	return nil
}

func (r *Repository) Close() error {
	return nil
}
