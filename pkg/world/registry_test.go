package world_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/world"
)

func newRegistry(t *testing.T, ids ...string) *world.Registry {
	t.Helper()
	reg := world.NewRegistry(world.NewClock(1))
	for _, id := range ids {
		_, err := reg.Create(id)
		gt.NoError(t, err).Required()
	}
	return reg
}

func TestRegistryCreateAndGet(t *testing.T) {
	t.Run("duplicate id fails", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN")
		_, err := reg.Create("RAVEN")
		gt.Error(t, err).Is(model.ErrDuplicateEntity)
	})

	t.Run("missing entity is NotFound", func(t *testing.T) {
		reg := newRegistry(t)
		_, err := reg.Get("GHOST")
		gt.Error(t, err).Is(model.ErrNotFound)

		err = reg.SetProperty("GHOST", "trust", model.Number(1))
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN")
		gt.NoError(t, reg.SetProperty("RAVEN", "supplies", model.Number(3))).Required()

		e, err := reg.Get("RAVEN")
		gt.NoError(t, err).Required()
		e.Set("supplies", model.Number(99))

		v, ok, err := reg.GetProperty("RAVEN", "supplies")
		gt.NoError(t, err).Required()
		gt.Bool(t, ok).True()
		gt.Value(t, v.Number).Equal(3.0)
	})

	t.Run("properties grow and shrink", func(t *testing.T) {
		reg := newRegistry(t, "DOOR")
		gt.NoError(t, reg.SetProperty("DOOR", "locked", model.Bool(true))).Required()

		removed, err := reg.DeleteProperty("DOOR", "locked")
		gt.NoError(t, err).Required()
		gt.Bool(t, removed).True()

		_, ok, err := reg.GetProperty("DOOR", "locked")
		gt.NoError(t, err).Required()
		gt.Bool(t, ok).False()
	})
}

func TestRegistryEntities(t *testing.T) {
	reg := newRegistry(t, "RAVEN", "FALCON", "DOOR")
	gt.NoError(t, reg.SetProperty("RAVEN", "role", model.Text("agent"))).Required()
	gt.NoError(t, reg.SetProperty("FALCON", "role", model.Text("agent"))).Required()

	seq := reg.Entities(world.HasProperty("role"))

	var first []string
	for e := range seq {
		first = append(first, e.ID())
	}
	gt.Value(t, first).Equal([]string{"RAVEN", "FALCON"})

	t.Run("sequence is restartable", func(t *testing.T) {
		var second []string
		for e := range seq {
			second = append(second, e.ID())
		}
		gt.Value(t, second).Equal(first)
	})

	t.Run("sequence is lazy", func(t *testing.T) {
		gt.NoError(t, reg.SetProperty("DOOR", "role", model.Text("exit"))).Required()
		count := 0
		for range seq {
			count++
		}
		gt.Number(t, count).Equal(3)
	})

	t.Run("early break stops iteration", func(t *testing.T) {
		count := 0
		for range reg.Entities() {
			count++
			break
		}
		gt.Number(t, count).Equal(1)
	})
}

func TestRegistryConnect(t *testing.T) {
	t.Run("overwrite keeps a single edge", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN", "FALCON")

		_, err := reg.Connect("RAVEN", "FALCON", 0.3)
		gt.NoError(t, err).Required()
		_, err = reg.Connect("RAVEN", "FALCON", -0.4)
		gt.NoError(t, err).Required()

		rels := reg.RelationshipsOf("RAVEN")
		gt.Array(t, rels).Length(1)
		gt.Value(t, rels[0].Strength).Equal(-0.4)
		gt.Array(t, reg.Relationships()).Length(1)
	})

	t.Run("strength is clamped", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN", "FALCON")
		rel, err := reg.Connect("RAVEN", "FALCON", 7)
		gt.NoError(t, err).Required()
		gt.Value(t, rel.Strength).Equal(1.0)

		rel, err = reg.Connect("FALCON", "RAVEN", -3)
		gt.NoError(t, err).Required()
		gt.Value(t, rel.Strength).Equal(-1.0)
	})

	t.Run("self connection is invalid", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN")
		_, err := reg.Connect("RAVEN", "RAVEN", 0.5)
		gt.Error(t, err).Is(model.ErrInvalidRelationship)
	})

	t.Run("unknown endpoint is NotFound", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN")
		_, err := reg.Connect("RAVEN", "GHOST", 0.5)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("most recently updated first", func(t *testing.T) {
		reg := newRegistry(t, "RAVEN", "FALCON", "VIPER")

		_, err := reg.Connect("RAVEN", "FALCON", 0.5)
		gt.NoError(t, err).Required()
		reg.Clock().Tick()
		_, err = reg.Connect("RAVEN", "VIPER", 0.1)
		gt.NoError(t, err).Required()

		rels := reg.RelationshipsOf("RAVEN")
		gt.Array(t, rels).Length(2)
		gt.Value(t, rels[0].Target).Equal("VIPER")

		// same simulated time: later call wins
		_, err = reg.Connect("RAVEN", "FALCON", 0.6)
		gt.NoError(t, err).Required()
		rels = reg.RelationshipsOf("RAVEN")
		gt.Value(t, rels[0].Target).Equal("FALCON")
		gt.Value(t, rels[0].UpdatedAt).Equal(1.0)
	})
}
