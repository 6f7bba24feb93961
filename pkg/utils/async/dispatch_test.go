package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/utils/async"
)

func TestGroupWaitsForHandlers(t *testing.T) {
	var g async.Group
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		g.Dispatch(context.Background(), func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	g.Dispatch(context.Background(), func(ctx context.Context) error {
		return errors.New("ignored")
	})
	g.Dispatch(context.Background(), func(ctx context.Context) error {
		panic("recovered")
	})

	g.Wait()
	gt.Number(t, count.Load()).Equal(5)
}

func TestDispatchDetachesCancellation(t *testing.T) {
	var g async.Group
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr atomic.Value
	g.Dispatch(ctx, func(ctx context.Context) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	})
	g.Wait()
	gt.Value(t, ctxErr.Load()).Equal(true)
}
