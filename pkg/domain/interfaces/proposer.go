package interfaces

import (
	"context"

	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// Proposer is the external reasoning collaborator: given an observation and a
// memory affordance it returns one proposed tool invocation. Unparseable
// output is reported as an error wrapping model.ErrMalformedAction.
type Proposer interface {
	Propose(ctx context.Context, obs *model.Observation, memory MemoryQuerier) (*model.Action, error)
}
