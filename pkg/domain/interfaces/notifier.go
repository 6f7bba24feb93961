package interfaces

import (
	"context"

	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

// Notifier publishes game summaries to an external channel
type Notifier interface {
	NotifyGame(ctx context.Context, summary *model.GameSummary) error
	NotifyRun(ctx context.Context, summary *model.RunSummary) error
}
