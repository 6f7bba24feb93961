package world

// Clock is the simulated game clock. Time is measured in abstract units and
// only moves when the engine advances it.
type Clock struct {
	now  float64
	step float64
}

// NewClock creates a clock at time zero advancing by step on each tick.
// Non-positive steps default to 1.
func NewClock(step float64) *Clock {
	if step <= 0 {
		step = 1
	}
	return &Clock{step: step}
}

// Now returns the current simulated time
func (c *Clock) Now() float64 {
	return c.now
}

// Step returns the tick size
func (c *Clock) Step() float64 {
	return c.step
}

// Tick advances the clock by one step and returns the new time
func (c *Clock) Tick() float64 {
	c.now += c.step
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *Clock) Advance(d float64) float64 {
	if d > 0 {
		c.now += d
	}
	return c.now
}
