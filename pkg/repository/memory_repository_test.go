package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/repository/file"
	"github.com/secmon-lab/stratagem/pkg/repository/firestore"
	"github.com/secmon-lab/stratagem/pkg/repository/gcs"
	"github.com/secmon-lab/stratagem/pkg/repository/memory"
)

func newSnapshot(gameID model.GameID) *model.MemorySnapshot {
	recordedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	transfer := &model.MemoryEvent{
		Seq:        1,
		GameID:     gameID,
		Round:      1,
		Time:       0,
		RecordedAt: recordedAt,
		Actor:      "FALCON",
		Tool:       string(types.ToolTransfer),
		Arguments: map[string]model.Value{
			"property": model.Text("supplies"),
			"target":   model.Text("RAVEN"),
			"amount":   model.Number(10),
		},
		Success:   true,
		Outcome:   model.Number(10),
		Reasoning: "RAVEN needs supplies",
		Embedding: []float32{0.5, 0.5, 0},
	}
	transfer.AssignID()

	failed := &model.MemoryEvent{
		Seq:        2,
		GameID:     gameID,
		Round:      1,
		Time:       1,
		RecordedAt: recordedAt,
		Actor:      "VIPER",
		Tool:       "teleport",
		Success:    false,
		Failure:    types.FailureUnknownTool,
		Reason:     "unknown tool",
		Embedding:  []float32{0, 1, 0},
	}
	failed.AssignID()

	pattern := &model.Pattern{
		Seq:         3,
		GameID:      gameID,
		Description: "Cooperation Emergence",
		Confidence:  0.6,
		Support:     []model.EventID{transfer.ID},
		Discoverer:  "system",
		RecordedAt:  recordedAt,
		Embedding:   []float32{1, 0, 0},
	}
	pattern.AssignID()

	return &model.MemorySnapshot{
		Version:  model.SnapshotVersion,
		SavedAt:  recordedAt,
		Events:   []*model.MemoryEvent{transfer, failed},
		Patterns: []*model.Pattern{pattern},
		Relationships: []*model.RelationshipRecord{
			{Seq: 4, GameID: gameID, Source: "RAVEN", Target: "FALCON", Strength: 0.5, Time: 0, RecordedAt: recordedAt},
		},
		Signals: []*model.Signal{
			{ID: model.SignalID(gameID, "RAVEN", 1, 2), GameID: gameID, Origin: "RAVEN", Payload: model.Text("help"), Intensity: 0.8, EmittedAt: 2},
		},
	}
}

func runMemoryRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.MemoryRepository) {
	t.Helper()

	t.Run("Load returns nil before the first save", func(t *testing.T) {
		repo := newRepo(t)
		snap, err := repo.Load(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, snap).Nil()
	})

	t.Run("Save then Load restores every record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		gameID := model.NewGameID()
		saved := newSnapshot(gameID)

		gt.NoError(t, repo.Save(ctx, saved)).Required()

		loaded, err := repo.Load(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, loaded).NotNil()
		gt.Number(t, loaded.Version).Equal(model.SnapshotVersion)

		gt.Array(t, loaded.Events).Length(2).Required()
		gt.Value(t, loaded.Events[0].ID).Equal(saved.Events[0].ID)
		gt.Value(t, loaded.Events[0].Actor).Equal("FALCON")
		gt.Value(t, loaded.Events[0].GameID).Equal(gameID)
		gt.Bool(t, loaded.Events[0].Success).True()
		gt.Bool(t, loaded.Events[0].Outcome.Equal(model.Number(10))).True()
		gt.Bool(t, loaded.Events[0].Arguments["target"].Equal(model.Text("RAVEN"))).True()
		gt.Value(t, loaded.Events[0].Reasoning).Equal("RAVEN needs supplies")
		gt.Array(t, loaded.Events[0].Embedding).Length(3)
		gt.Bool(t, loaded.Events[0].RecordedAt.Equal(saved.Events[0].RecordedAt)).True()

		gt.Value(t, loaded.Events[1].Failure).Equal(types.FailureUnknownTool)
		gt.Bool(t, loaded.Events[1].Success).False()

		gt.Array(t, loaded.Patterns).Length(1).Required()
		gt.Value(t, loaded.Patterns[0].ID).Equal(saved.Patterns[0].ID)
		gt.Value(t, loaded.Patterns[0].Description).Equal("Cooperation Emergence")
		gt.Array(t, loaded.Patterns[0].Support).Length(1)

		gt.Array(t, loaded.Relationships).Length(1).Required()
		gt.Value(t, loaded.Relationships[0].Key()).Equal("RAVEN->FALCON")
		gt.Number(t, loaded.Relationships[0].Strength).Equal(0.5)

		gt.Array(t, loaded.Signals).Length(1).Required()
		gt.Value(t, loaded.Signals[0].Origin).Equal("RAVEN")
		gt.Bool(t, loaded.Signals[0].Payload.Equal(model.Text("help"))).True()
	})

	t.Run("Save replaces the previous snapshot", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		first := newSnapshot(model.NewGameID())
		gt.NoError(t, repo.Save(ctx, first)).Required()

		second := newSnapshot(model.NewGameID())
		second.Events = second.Events[:1]
		second.Signals = []*model.Signal{}
		gt.NoError(t, repo.Save(ctx, second)).Required()

		loaded, err := repo.Load(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Events).Length(1).Required()
		gt.Value(t, loaded.Events[0].ID).Equal(second.Events[0].ID)
		gt.Array(t, loaded.Signals).Length(0)
	})

	t.Run("Loaded snapshot is independent of the saved one", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		saved := newSnapshot(model.NewGameID())
		gt.NoError(t, repo.Save(ctx, saved)).Required()

		saved.Events[0].Actor = "changed"
		loaded, err := repo.Load(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, loaded.Events[0].Actor).Equal("FALCON")
	})
}

func TestMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.MemoryRepository {
		return memory.New()
	})
}

func TestFileRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.MemoryRepository {
		repo, err := file.New(filepath.Join(t.TempDir(), "nested", "memory.json"))
		gt.NoError(t, err).Required()
		return repo
	})
}

func TestFileRepositoryEdgeCases(t *testing.T) {
	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := file.New("")
		gt.Error(t, err)
	})

	t.Run("corrupt file fails to load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		gt.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600)).Required()

		repo, err := file.New(path)
		gt.NoError(t, err).Required()
		_, err = repo.Load(context.Background())
		gt.Error(t, err)
	})

	t.Run("empty file loads as nothing saved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		gt.NoError(t, os.WriteFile(path, nil, 0o600)).Required()

		repo, err := file.New(path)
		gt.NoError(t, err).Required()
		snap, err := repo.Load(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, snap).Nil()
	})

	t.Run("older file without signals decodes with empty collections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		gt.NoError(t, os.WriteFile(path, []byte(`{"version":1,"events":[]}`), 0o600)).Required()

		repo, err := file.New(path)
		gt.NoError(t, err).Required()
		snap, err := repo.Load(context.Background())
		gt.NoError(t, err).Required()
		gt.True(t, snap.Signals != nil)
		gt.True(t, snap.Patterns != nil)
		gt.Array(t, snap.Signals).Length(0)
		gt.Array(t, snap.Patterns).Length(0)
		gt.Array(t, snap.Relationships).Length(0)
	})

	t.Run("newer file keeps its records through load and save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		newer := fmt.Sprintf(`{
  "version": %d,
  "future_field": {"anything": true},
  "events": [{"id": "e1", "seq": 1, "game_id": "g1", "actor": "RAVEN", "tool": "observe", "success": true, "outcome": null}],
  "patterns": [{"id": "p1", "seq": 2, "description": "keep me", "confidence": 0.5, "discoverer": "RAVEN"}]
}`, model.SnapshotVersion+1)
		gt.NoError(t, os.WriteFile(path, []byte(newer), 0o600)).Required()

		repo, err := file.New(path)
		gt.NoError(t, err).Required()
		snap, err := repo.Load(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, snap.Events).Length(1).Required()
		gt.Array(t, snap.Patterns).Length(1).Required()
		gt.Value(t, snap.Patterns[0].Description).Equal("keep me")

		gt.NoError(t, repo.Save(context.Background(), snap)).Required()
		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains("keep me")
	})

	t.Run("no temporary files remain after save", func(t *testing.T) {
		dir := t.TempDir()
		repo, err := file.New(filepath.Join(dir, "memory.json"))
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Save(context.Background(), newSnapshot(model.NewGameID()))).Required()

		entries, err := os.ReadDir(dir)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].Name()).Equal("memory.json")
	})
}

func TestParseGCSURL(t *testing.T) {
	bucket, object, err := gcs.ParseURL("gs://my-bucket/games/memory.json")
	gt.NoError(t, err).Required()
	gt.Value(t, bucket).Equal("my-bucket")
	gt.Value(t, object).Equal("games/memory.json")

	gt.Bool(t, gcs.IsURL("memory.json")).False()

	for _, invalid := range []string{"memory.json", "gs://", "gs://bucket", "gs://bucket/", "gs:///object", "gs://bucket/dir/"} {
		_, _, err := gcs.ParseURL(invalid)
		gt.Error(t, err).Is(gcs.ErrInvalidURL)
	}
}

func TestGCSRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.MemoryRepository {
		bucket := os.Getenv("TEST_GCS_BUCKET")
		if bucket == "" {
			t.Skip("TEST_GCS_BUCKET not set")
		}

		ctx := context.Background()
		location := fmt.Sprintf("gs://%s/stratagem-test/%d/memory.json", bucket, time.Now().UnixNano())
		repo, err := gcs.New(ctx, location)
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, repo.Close())
		})
		return repo
	})
}

func TestFirestoreRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.MemoryRepository {
		projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
		if projectID == "" {
			t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
		}
		databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

		ctx := context.Background()
		prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
		repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, repo.Close())
		})
		return repo
	})
}
