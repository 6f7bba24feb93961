package world_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/world"
)

type recordingSink struct {
	signals []*model.Signal
}

func (s *recordingSink) RecordSignal(_ context.Context, sig *model.Signal) error {
	s.signals = append(s.signals, sig)
	return nil
}

type failingSink struct{}

func (failingSink) RecordSignal(context.Context, *model.Signal) error {
	return goerr.New("history unavailable")
}

func ptr(f float64) *float64 { return &f }

func TestSignalBusEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("negative intensity is rejected", func(t *testing.T) {
		sink := &recordingSink{}
		bus := world.NewSignalBus(model.NewGameID(), world.NewClock(1), sink)
		_, err := bus.Emit(ctx, "RAVEN", "", model.Text("help"), -0.1)
		gt.Error(t, err).Is(model.ErrInvalidIntensity)
		gt.Number(t, bus.Len()).Equal(0)
		gt.Array(t, sink.signals).Length(0)
	})

	t.Run("emitted signals are forwarded to the sink", func(t *testing.T) {
		sink := &recordingSink{}
		bus := world.NewSignalBus(model.NewGameID(), world.NewClock(1), sink)

		sig, err := bus.Emit(ctx, "RAVEN", "all", model.Text("help"), 0.8)
		gt.NoError(t, err).Required()
		gt.Bool(t, sig.IsBroadcast()).True()
		gt.Array(t, sink.signals).Length(1)
		gt.Value(t, sink.signals[0].ID).Equal(sig.ID)
	})

	t.Run("signal rejected by the sink is not delivered", func(t *testing.T) {
		bus := world.NewSignalBus(model.NewGameID(), world.NewClock(1), failingSink{})
		_, err := bus.Emit(ctx, "RAVEN", "", model.Text("help"), 0.8)
		gt.Error(t, err)
		gt.Number(t, bus.Len()).Equal(0)
		gt.Array(t, bus.Receive("FALCON", world.SignalFilter{}, 10)).Length(0)
	})
}

func TestSignalBusFractionalTimeStep(t *testing.T) {
	ctx := context.Background()
	clock := world.NewClock(0.1)
	bus := world.NewSignalBus(model.NewGameID(), clock, nil)

	_, err := bus.Emit(ctx, "RAVEN", "", model.Text("at zero"), 0.5)
	gt.NoError(t, err).Required()

	for range 3 {
		clock.Tick()
	}
	gt.Array(t, bus.Receive("FALCON", world.SignalFilter{}, 0.3)).Length(1)
	gt.Number(t, bus.Purge(0.3)).Equal(0)

	clock.Tick()
	gt.Array(t, bus.Receive("FALCON", world.SignalFilter{}, 0.3)).Length(0)
}

func TestSignalBusReceiveWindow(t *testing.T) {
	ctx := context.Background()
	clock := world.NewClock(1)
	bus := world.NewSignalBus(model.NewGameID(), clock, nil)

	_, err := bus.Emit(ctx, "RAVEN", "", model.Text("at zero"), 0.5)
	gt.NoError(t, err).Required()

	for now := 0; now <= 6; now++ {
		got := bus.Receive("FALCON", world.SignalFilter{}, 3)
		if now <= 3 {
			gt.Array(t, got).Length(1)
		} else {
			gt.Array(t, got).Length(0)
		}
		clock.Tick()
	}
}

func TestSignalBusReceiveFilters(t *testing.T) {
	ctx := context.Background()
	clock := world.NewClock(1)
	bus := world.NewSignalBus(model.NewGameID(), clock, nil)

	_, err := bus.Emit(ctx, "RAVEN", "FALCON", model.Text("private"), 0.9)
	gt.NoError(t, err).Required()
	_, err = bus.Emit(ctx, "VIPER", "", model.Text("broadcast"), 0.2)
	gt.NoError(t, err).Required()

	t.Run("directed signals reach only their target", func(t *testing.T) {
		gt.Array(t, bus.Receive("FALCON", world.SignalFilter{}, 10)).Length(2)
		gt.Array(t, bus.Receive("VIPER", world.SignalFilter{}, 10)).Length(0)
	})

	t.Run("own signals are skipped", func(t *testing.T) {
		got := bus.Receive("RAVEN", world.SignalFilter{}, 10)
		gt.Array(t, got).Length(1)
		gt.Value(t, got[0].Origin).Equal("VIPER")
	})

	t.Run("origin and intensity predicates", func(t *testing.T) {
		got := bus.Receive("FALCON", world.SignalFilter{Origin: "VIPER"}, 10)
		gt.Array(t, got).Length(1)

		got = bus.Receive("FALCON", world.SignalFilter{MinIntensity: ptr(0.5)}, 10)
		gt.Array(t, got).Length(1)
		gt.Value(t, got[0].Origin).Equal("RAVEN")

		got = bus.Receive("FALCON", world.SignalFilter{MaxIntensity: ptr(0.1)}, 10)
		gt.Array(t, got).Length(0)
	})
}

func TestSignalBusPurge(t *testing.T) {
	ctx := context.Background()
	clock := world.NewClock(1)
	sink := &recordingSink{}
	bus := world.NewSignalBus(model.NewGameID(), clock, sink)

	_, err := bus.Emit(ctx, "RAVEN", "", model.Text("old"), 0.5)
	gt.NoError(t, err).Required()
	clock.Advance(5)
	_, err = bus.Emit(ctx, "RAVEN", "", model.Text("new"), 0.5)
	gt.NoError(t, err).Required()

	gt.Number(t, bus.Purge(2)).Equal(1)
	active := bus.Active()
	gt.Array(t, active).Length(1)
	gt.Value(t, active[0].Payload.Text).Equal("new")

	// history keeps both
	gt.Array(t, sink.signals).Length(2)
}
