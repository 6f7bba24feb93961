package world

import (
	"context"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// timeEpsilon absorbs float drift of the accumulated simulated time
const timeEpsilon = 1e-9

// SignalSink receives a copy of every emitted signal for the durable history
type SignalSink interface {
	RecordSignal(ctx context.Context, s *model.Signal) error
}

// SignalFilter narrows Receive results. Zero values disable a predicate.
type SignalFilter struct {
	Origin       string
	MinIntensity *float64
	MaxIntensity *float64
}

func (f SignalFilter) match(s *model.Signal) bool {
	if f.Origin != "" && f.Origin != s.Origin {
		return false
	}
	if f.MinIntensity != nil && s.Intensity < *f.MinIntensity {
		return false
	}
	if f.MaxIntensity != nil && s.Intensity > *f.MaxIntensity {
		return false
	}
	return true
}

// SignalBus is the windowed publish/listen channel of one game. Signals are
// kept in emission order and timed with the simulated clock.
type SignalBus struct {
	gameID model.GameID
	clock  *Clock
	sink   SignalSink
	active []*model.Signal
	seq    uint64
}

// NewSignalBus creates a bus for one game. sink may be nil.
func NewSignalBus(gameID model.GameID, clock *Clock, sink SignalSink) *SignalBus {
	if clock == nil {
		clock = NewClock(1)
	}
	return &SignalBus{
		gameID: gameID,
		clock:  clock,
		sink:   sink,
	}
}

// Emit forwards a copy of the signal to the sink and then appends it to the
// active sequence. A signal the sink rejects is not delivered. An empty
// target or "all" broadcasts.
func (b *SignalBus) Emit(ctx context.Context, origin, target string, payload model.Value, intensity float64) (*model.Signal, error) {
	if intensity < 0 || math.IsNaN(intensity) || math.IsInf(intensity, 0) {
		return nil, goerr.Wrap(model.ErrInvalidIntensity, "cannot emit signal",
			goerr.V(model.ActorKey, origin), goerr.V("intensity", intensity))
	}
	if target == model.BroadcastTarget {
		target = ""
	}

	b.seq++
	now := b.clock.Now()
	s := &model.Signal{
		ID:        model.SignalID(b.gameID, origin, b.seq, now),
		GameID:    b.gameID,
		Origin:    origin,
		Target:    target,
		Payload:   payload.Clone(),
		Intensity: intensity,
		EmittedAt: now,
	}
	if b.sink != nil {
		if err := b.sink.RecordSignal(ctx, s.Clone()); err != nil {
			return nil, goerr.Wrap(err, "failed to record signal", goerr.V("signal_id", s.ID))
		}
	}
	b.active = append(b.active, s)
	return s.Clone(), nil
}

// Receive returns the active signals visible to receiver that were emitted
// no more than window time units ago and match filter, oldest first. The
// receiver's own signals are never returned. Receive never blocks.
func (b *SignalBus) Receive(receiver string, filter SignalFilter, window float64) []*model.Signal {
	if window < 0 || math.IsNaN(window) {
		window = 0
	}
	now := b.clock.Now()

	out := []*model.Signal{}
	for _, s := range b.active {
		age := now - s.EmittedAt
		if age < -timeEpsilon || age > window+timeEpsilon {
			continue
		}
		if s.Origin == receiver || !s.VisibleTo(receiver) || !filter.match(s) {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

// Purge drops active signals older than retention and returns how many were
// removed. Purged signals stay in the durable history.
func (b *SignalBus) Purge(retention float64) int {
	now := b.clock.Now()
	kept := b.active[:0]
	for _, s := range b.active {
		if now-s.EmittedAt <= retention+timeEpsilon {
			kept = append(kept, s)
		}
	}
	removed := len(b.active) - len(kept)
	for i := len(kept); i < len(b.active); i++ {
		b.active[i] = nil
	}
	b.active = kept
	return removed
}

// Active returns copies of the active signals in emission order
func (b *SignalBus) Active() []*model.Signal {
	out := make([]*model.Signal, len(b.active))
	for i, s := range b.active {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of active signals
func (b *SignalBus) Len() int {
	return len(b.active)
}
