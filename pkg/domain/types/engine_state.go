package types

// EngineState is the lifecycle state of one game
type EngineState string

const (
	EngineInitializing EngineState = "Initializing"
	EngineRunning      EngineState = "Running"
	EngineTerminating  EngineState = "Terminating"
	EnginePersisted    EngineState = "Persisted"
)

// String returns the string representation of the engine state
func (s EngineState) String() string {
	return string(s)
}

// StopReason records which stopping condition ended a game
type StopReason string

const (
	StopNone          StopReason = ""
	StopMaxTime       StopReason = "max_time"
	StopMaxActions    StopReason = "max_actions"
	StopTerminal      StopReason = "terminal_condition"
	StopRequested     StopReason = "external_request"
	StopNoActiveAgent StopReason = "no_active_agent"
)

// String returns the string representation of the stop reason
func (r StopReason) String() string {
	return string(r)
}
