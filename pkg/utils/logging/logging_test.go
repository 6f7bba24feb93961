package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

func TestFromFallsBackToDefault(t *testing.T) {
	gt.Value(t, logging.From(context.Background())).Equal(logging.Default())
}

func TestWithCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.With(context.Background(), logger)
	logging.From(ctx).Info("hello", "agent", "RAVEN")

	gt.String(t, buf.String()).Contains(`"agent":"RAVEN"`)
}
