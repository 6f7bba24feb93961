package model

// Relationship is a directed, weighted edge between two entities. At most one
// relationship exists per ordered (Source, Target) pair.
type Relationship struct {
	Source   string
	Target   string
	Strength float64
	// UpdatedAt is the simulated time of the last connect call
	UpdatedAt float64
	// Revision orders updates that happen at the same simulated time
	Revision uint64
}

// ClampStrength bounds a relationship strength to [-1, 1]
func ClampStrength(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Key returns the "source->target" key of the edge
func (r Relationship) Key() string {
	return r.Source + "->" + r.Target
}

// Kind describes the sign of the strength
func (r Relationship) Kind() string {
	switch {
	case r.Strength > 0:
		return "trust"
	case r.Strength < 0:
		return "distrust"
	default:
		return "neutral"
	}
}
