package async

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// Group runs handlers in background goroutines. Errors and panics are
// logged, never propagated. Wait blocks until every dispatched handler returns.
type Group struct {
	wg sync.WaitGroup
}

// Dispatch executes handler asynchronously with a context detached from
// ctx's cancellation but carrying its logger.
func (g *Group) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.WithoutCancel(ctx), logging.From(ctx))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}

// Wait blocks until all dispatched handlers have finished
func (g *Group) Wait() {
	g.wg.Wait()
}
