package safe_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/stratagem/pkg/utils/safe"
)

func TestWriteAndClose(t *testing.T) {
	var buf bytes.Buffer
	safe.Write(context.Background(), &buf, []byte("hello"))
	gt.String(t, buf.String()).Equal("hello")

	safe.Write(context.Background(), nil, []byte("ignored"))
	safe.Close(context.Background(), nil)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp.json")
	gt.NoError(t, os.WriteFile(path, []byte("{}"), 0o600)).Required()

	safe.Remove(context.Background(), path)
	_, err := os.Stat(path)
	gt.Bool(t, os.IsNotExist(err)).True()

	// absent file is not an error
	safe.Remove(context.Background(), path)
}
