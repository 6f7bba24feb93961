package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/cli/config"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/secmon-lab/stratagem/pkg/repository/file"
	"github.com/secmon-lab/stratagem/pkg/repository/memory"
	"github.com/secmon-lab/stratagem/pkg/scenario"
)

func TestLLMValidate(t *testing.T) {
	t.Run("openai requires an API key", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, config.EmbedderHash, "", "", "")
		gt.Error(t, cfg.Validate()).Is(config.ErrMissingAPIKey)
	})

	t.Run("openai with key is valid", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, config.EmbedderHash, "sk-test", "", "")
		gt.NoError(t, cfg.Validate())
	})

	t.Run("gemini requires a project", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderGemini, config.EmbedderHash, "", "", "")
		gt.Error(t, cfg.Validate()).Is(config.ErrInvalidConfig)
	})

	t.Run("claude requires an API key", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderClaude, config.EmbedderHash, "", "", "")
		gt.Error(t, cfg.Validate()).Is(config.ErrMissingAPIKey)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.NewLLMForTest("llama", config.EmbedderHash, "sk-test", "", "")
		gt.Error(t, cfg.Validate()).Is(config.ErrUnknownProvider)
	})

	t.Run("unknown embedder", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, "tfidf", "sk-test", "", "")
		gt.Error(t, cfg.Validate()).Is(config.ErrInvalidConfig)
	})

	t.Run("configure fails before creating a client", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, config.EmbedderHash, "", "", "")
		client, err := cfg.Configure(t.Context())
		gt.Error(t, err)
		gt.Value(t, client).Nil()
	})
}

func TestLLMEmbedder(t *testing.T) {
	t.Run("hash embedder by default", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, config.EmbedderHash, "sk-test", "", "")
		_, ok := cfg.Embedder(nil).(*embedding.Hash)
		gt.Bool(t, ok).True()
	})

	t.Run("llm embedder without a client falls back to hash", func(t *testing.T) {
		cfg := config.NewLLMForTest(config.ProviderOpenAI, config.EmbedderLLM, "sk-test", "", "")
		_, ok := cfg.Embedder(nil).(*embedding.Hash)
		gt.Bool(t, ok).True()
	})

	t.Run("returns flags", func(t *testing.T) {
		cfg := config.NewLLMForTest("", "", "", "", "")
		gt.Number(t, len(cfg.Flags())).Equal(13)
	})
}

func TestMemoryConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("file backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "memory.json")
		repo, err := config.NewMemoryForTest(config.BackendFile, path, "").Configure(ctx)
		gt.NoError(t, err).Required()
		fr, ok := repo.(*file.Repository)
		gt.Bool(t, ok).True()
		gt.Value(t, fr.Path()).Equal(path)
	})

	t.Run("in-process backend", func(t *testing.T) {
		repo, err := config.NewMemoryForTest(config.BackendMemory, "", "").Configure(ctx)
		gt.NoError(t, err).Required()
		_, ok := repo.(*memory.Repository)
		gt.Bool(t, ok).True()
	})

	t.Run("firestore requires a project", func(t *testing.T) {
		_, err := config.NewMemoryForTest(config.BackendFirestore, "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewMemoryForTest("redis", "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrUnknownBackend)
	})

	t.Run("empty file path", func(t *testing.T) {
		_, err := config.NewMemoryForTest(config.BackendFile, "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("location", func(t *testing.T) {
		gt.Value(t, config.NewMemoryForTest(config.BackendFile, "m.json", "").Location()).Equal("m.json")
		gt.Value(t, config.NewMemoryForTest(config.BackendMemory, "", "").Location()).Equal("(in process)")
	})
}

func TestGameConfig(t *testing.T) {
	t.Run("built-in scenario", func(t *testing.T) {
		cfg := config.NewGameForTest(2, scenario.DefaultName, "", 500, 100)
		gt.NoError(t, cfg.Validate())
		sc, err := cfg.Scenario()
		gt.NoError(t, err).Required()
		gt.Value(t, sc.Name).Equal(scenario.DefaultName)
		gt.Number(t, cfg.Games()).Equal(2)

		ec := cfg.EngineConfig()
		gt.Number(t, ec.MaxTime).Equal(500)
		gt.Number(t, ec.MaxActions).Equal(100)
	})

	t.Run("scenario file overrides the name", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "duel.toml")
		content := `
name = "duel"
agents = ["A", "B"]

[[entity]]
id = "A"
properties = { role = "agent" }

[[entity]]
id = "B"
properties = { role = "agent" }
`
		gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
		sc, err := config.NewGameForTest(1, "safehouse", path, 10, 10).Scenario()
		gt.NoError(t, err).Required()
		gt.Value(t, sc.Name).Equal("duel")
	})

	t.Run("unknown scenario", func(t *testing.T) {
		_, err := config.NewGameForTest(1, "moonbase", "", 10, 10).Scenario()
		gt.Error(t, err).Is(scenario.ErrUnknownScenario)
	})

	t.Run("invalid limits", func(t *testing.T) {
		gt.Error(t, config.NewGameForTest(0, "safehouse", "", 10, 10).Validate()).Is(config.ErrInvalidConfig)
		gt.Error(t, config.NewGameForTest(1, "safehouse", "", 0, 10).Validate()).Is(config.ErrInvalidConfig)
	})
}

func TestSlackConfigure(t *testing.T) {
	t.Run("disabled without token and channel", func(t *testing.T) {
		n, err := config.NewSlackForTest("", "").Configure()
		gt.NoError(t, err)
		gt.Value(t, n).Nil()
	})

	t.Run("token without channel", func(t *testing.T) {
		_, err := config.NewSlackForTest("xoxb-test", "").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("configured", func(t *testing.T) {
		n, err := config.NewSlackForTest("xoxb-test", "C123").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, n).NotNil()
	})
}

func TestLoggerConfigure(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "console", "stderr").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stderr").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("json log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stratagem.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})
}
