package model

// Observation is the context handed to the reasoning collaborator for one
// agent turn.
type Observation struct {
	GameID   GameID
	Scenario string
	Agent    string
	Round    int
	Time     float64
	MaxTime  float64
	// Self is a copy of the acting agent's entity
	Self *Entity
	// Agents lists the other agents in turn order
	Agents []string
	// Objects lists non-agent entities
	Objects []string
	// Signals are signals visible to the agent within the observation window
	Signals []*Signal
	// LastResult is the result of the agent's previous action, including failures
	LastResult *ToolResult
	// History holds the agent's most recent results, oldest first
	History []*ToolResult
}
