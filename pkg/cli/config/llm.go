package config

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/stratagem/pkg/agent/proposer"
	"github.com/secmon-lab/stratagem/pkg/agent/tool/primitive"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/embedding"
	"github.com/urfave/cli/v3"
)

// LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Embedders
const (
	EmbedderHash = "hash"
	EmbedderLLM  = "llm"
)

// LLM holds CLI flags for the reasoning collaborator and the embedder
type LLM struct {
	provider string
	embedder string

	openaiKey   string
	openaiModel string
	temperature float64
	maxTokens   int

	geminiProject  string
	geminiLocation string
	geminiModel    string

	anthropicKey string
	claudeModel  string

	retries int
	timeout time.Duration
}

func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (openai, gemini, claude)",
			Category:    "LLM",
			Value:       ProviderOpenAI,
			Sources:     cli.EnvVars("STRATAGEM_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Memory embedder (hash, llm)",
			Category:    "LLM",
			Value:       EmbedderHash,
			Sources:     cli.EnvVars("STRATAGEM_EMBEDDER"),
			Destination: &x.embedder,
		},
		&cli.StringFlag{
			Name:        "openai-key",
			Usage:       "OpenAI API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &x.openaiKey,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model name",
			Category:    "LLM",
			Value:       "gpt-4o-mini",
			Sources:     cli.EnvVars("OPENAI_MODEL"),
			Destination: &x.openaiModel,
		},
		&cli.FloatFlag{
			Name:        "openai-temperature",
			Usage:       "OpenAI sampling temperature",
			Category:    "LLM",
			Value:       0.7,
			Sources:     cli.EnvVars("OPENAI_TEMPERATURE"),
			Destination: &x.temperature,
		},
		&cli.IntFlag{
			Name:        "openai-max-tokens",
			Usage:       "OpenAI maximum tokens per response",
			Category:    "LLM",
			Value:       1200,
			Sources:     cli.EnvVars("OPENAI_MAX_TOKENS"),
			Destination: &x.maxTokens,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("STRATAGEM_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "LLM",
			Value:       "us-central1",
			Sources:     cli.EnvVars("STRATAGEM_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Category:    "LLM",
			Sources:     cli.EnvVars("STRATAGEM_GEMINI_MODEL"),
			Destination: &x.geminiModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-key",
			Usage:       "Anthropic API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &x.anthropicKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model name",
			Category:    "LLM",
			Sources:     cli.EnvVars("STRATAGEM_CLAUDE_MODEL"),
			Destination: &x.claudeModel,
		},
		&cli.IntFlag{
			Name:        "proposer-retries",
			Usage:       "Retries of a failed or unparseable proposal",
			Category:    "LLM",
			Value:       proposer.DefaultRetries,
			Sources:     cli.EnvVars("STRATAGEM_PROPOSER_RETRIES"),
			Destination: &x.retries,
		},
		&cli.DurationFlag{
			Name:        "proposer-timeout",
			Usage:       "Timeout of one proposal",
			Category:    "LLM",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("STRATAGEM_PROPOSER_TIMEOUT"),
			Destination: &x.timeout,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("embedder", x.embedder),
		slog.String("openai_model", x.openaiModel),
		slog.Int("openai_key.len", len(x.openaiKey)),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
		slog.Int("anthropic_key.len", len(x.anthropicKey)),
		slog.Int("retries", x.retries),
		slog.Duration("timeout", x.timeout),
	)
}

// Validate checks that the selected provider has its credentials
func (x *LLM) Validate() error {
	switch strings.ToLower(x.provider) {
	case ProviderOpenAI:
		if x.openaiKey == "" {
			return goerr.Wrap(ErrMissingAPIKey, "set OPENAI_API_KEY or --openai-key", goerr.V(ProviderKey, x.provider))
		}
	case ProviderGemini:
		if x.geminiProject == "" {
			return goerr.Wrap(ErrInvalidConfig, "--gemini-project is required", goerr.V(ProviderKey, x.provider))
		}
	case ProviderClaude:
		if x.anthropicKey == "" {
			return goerr.Wrap(ErrMissingAPIKey, "set ANTHROPIC_API_KEY or --anthropic-key", goerr.V(ProviderKey, x.provider))
		}
	default:
		return goerr.Wrap(ErrUnknownProvider, "provider must be openai, gemini or claude", goerr.V(ProviderKey, x.provider))
	}

	switch strings.ToLower(x.embedder) {
	case EmbedderHash, EmbedderLLM:
	default:
		return goerr.Wrap(ErrInvalidConfig, "embedder must be hash or llm", goerr.V(FlagKey, "embedder"), goerr.V(ValueKey, x.embedder))
	}
	return nil
}

// Configure creates the LLM client of the selected provider
func (x *LLM) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(x.provider) {
	case ProviderGemini:
		var opts []gemini.Option
		if x.geminiModel != "" {
			opts = append(opts, gemini.WithModel(x.geminiModel))
		}
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case ProviderClaude:
		var opts []claude.Option
		if x.claudeModel != "" {
			opts = append(opts, claude.WithModel(x.claudeModel))
		}
		client, err := claude.New(ctx, x.anthropicKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		return client, nil

	default:
		client, err := openai.New(ctx, x.openaiKey,
			openai.WithModel(x.openaiModel),
			openai.WithTemperature(float32(x.temperature)),
			openai.WithMaxTokens(x.maxTokens),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil
	}
}

// Proposer wraps client in the LLM proposer with bounded retries
func (x *LLM) Proposer(client gollem.LLMClient, briefing string) interfaces.Proposer {
	llm := proposer.NewLLM(client, primitive.Declarations(),
		proposer.WithBriefing(briefing),
		proposer.WithTimeout(x.timeout),
	)
	return proposer.WithRetry(llm, x.retries)
}

// Embedder returns the memory embedder. The LLM embedder needs a client;
// without one the hashing embedder is used.
func (x *LLM) Embedder(client gollem.LLMClient) interfaces.Embedder {
	if strings.ToLower(x.embedder) == EmbedderLLM && client != nil {
		return embedding.NewLLM(client)
	}
	return embedding.NewHash(0)
}

// Timeout returns the per-proposal timeout
func (x *LLM) Timeout() time.Duration {
	return x.timeout
}
