// Package codec encodes memory snapshots for the file-based backends.
package codec

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// Encode renders the snapshot as indented JSON
func Encode(snap *model.MemorySnapshot) ([]byte, error) {
	if snap == nil {
		return nil, goerr.New("snapshot is nil")
	}
	if snap.Version == 0 {
		snap.Version = model.SnapshotVersion
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode memory snapshot")
	}
	return data, nil
}

// Decode parses a snapshot. Collections absent from older files decode as
// empty. Empty input decodes as nil. A snapshot written by a newer format is
// decoded best-effort: fields this build does not know are ignored and the
// known records are kept, so a later save does not drop them.
func Decode(data []byte) (*model.MemorySnapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var snap model.MemorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory snapshot")
	}
	if snap.Version > model.SnapshotVersion {
		logging.Default().Warn("memory snapshot is newer than this build, unknown fields are ignored",
			slog.Int("version", snap.Version),
			slog.Int("supported", model.SnapshotVersion),
		)
	}
	snap.Normalize()
	return &snap, nil
}
