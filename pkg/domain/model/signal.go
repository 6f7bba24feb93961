package model

// BroadcastTarget is accepted as an alias for an absent signal target
const BroadcastTarget = "all"

// Signal is a message emitted on the signal bus
type Signal struct {
	ID        string  `json:"id"`
	GameID    GameID  `json:"game_id"`
	Origin    string  `json:"origin"`
	Target    string  `json:"target,omitempty"`
	Payload   Value   `json:"payload"`
	Intensity float64 `json:"intensity"`
	EmittedAt float64 `json:"emitted_at"`
}

// IsBroadcast reports whether the signal has no explicit target
func (s *Signal) IsBroadcast() bool {
	return s.Target == ""
}

// VisibleTo reports whether the given entity may receive the signal
func (s *Signal) VisibleTo(entityID string) bool {
	return s.IsBroadcast() || s.Target == entityID
}

// Clone returns a deep copy of the signal
func (s *Signal) Clone() *Signal {
	c := *s
	c.Payload = s.Payload.Clone()
	return &c
}

// Map renders the signal for tool payloads and prompts
func (s *Signal) Map() map[string]any {
	target := s.Target
	if target == "" {
		target = BroadcastTarget
	}
	return map[string]any{
		"id":         s.ID,
		"sender":     s.Origin,
		"target":     target,
		"message":    s.Payload.Any(),
		"intensity":  s.Intensity,
		"emitted_at": s.EmittedAt,
	}
}
