package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig   = goerr.New("invalid configuration")
	ErrMissingAPIKey   = goerr.New("API key is required")
	ErrUnknownProvider = goerr.New("unknown LLM provider")
	ErrUnknownBackend  = goerr.New("unknown memory backend")
)

// Context keys for error values
const (
	FlagKey     = "flag"
	ValueKey    = "value"
	ProviderKey = "provider"
	BackendKey  = "backend"
)
