package errutil_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/utils/errutil"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

func TestHandle(t *testing.T) {
	t.Run("nil error is passed through", func(t *testing.T) {
		gt.NoError(t, errutil.Handle(context.Background(), nil, "nothing"))
	})

	t.Run("logs goerr values and returns the error", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

		base := goerr.New("load failed", goerr.V("path", "memory.json"))
		err := errutil.Handle(ctx, base, "memory load")

		gt.Bool(t, errors.Is(err, base)).True()
		gt.String(t, buf.String()).Contains("memory.json")
		gt.String(t, buf.String()).Contains("memory load")
	})
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	errutil.Warn(ctx, errors.New("corrupted"), "falling back to empty memory")
	gt.String(t, buf.String()).Contains(`"level":"WARN"`)
	gt.String(t, buf.String()).Contains("corrupted")
}
