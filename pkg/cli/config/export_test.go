package config

import "time"

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, embedder, openaiKey, geminiProject, anthropicKey string) *LLM {
	return &LLM{
		provider:       provider,
		embedder:       embedder,
		openaiKey:      openaiKey,
		openaiModel:    "gpt-4o-mini",
		temperature:    0.7,
		maxTokens:      1200,
		geminiProject:  geminiProject,
		geminiLocation: "us-central1",
		anthropicKey:   anthropicKey,
		retries:        3,
		timeout:        time.Minute,
	}
}

// NewMemoryForTest creates a Memory config for testing purposes
func NewMemoryForTest(backend, file, projectID string) *Memory {
	return &Memory{backend: backend, file: file, projectID: projectID}
}

// NewGameForTest creates a Game config for testing purposes
func NewGameForTest(games int, scenarioName, scenarioFile string, maxTime float64, maxActions int) *Game {
	return &Game{
		games:           games,
		scenario:        scenarioName,
		scenarioFile:    scenarioFile,
		maxTime:         maxTime,
		maxActions:      maxActions,
		timeStep:        1,
		signalWindow:    20,
		signalRetention: 100,
	}
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(token, channel string) *Slack {
	return &Slack{token: token, channel: channel}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}
