// Package gcs persists the memory snapshot as a Cloud Storage object.
package gcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/repository/codec"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/secmon-lab/stratagem/pkg/utils/safe"
)

const scheme = "gs://"

// ErrInvalidURL is returned for a location that is not gs://bucket/object
var ErrInvalidURL = goerr.New("invalid Cloud Storage URL")

// Repository stores the snapshot in one object
type Repository struct {
	client *storage.Client
	bucket string
	object string
}

var _ interfaces.MemoryRepository = (*Repository)(nil)

// IsURL reports whether location names a Cloud Storage object
func IsURL(location string) bool {
	return strings.HasPrefix(location, scheme)
}

// ParseURL splits gs://bucket/path/to/object into bucket and object names
func ParseURL(location string) (string, string, error) {
	if !IsURL(location) {
		return "", "", goerr.Wrap(ErrInvalidURL, "missing gs:// prefix", goerr.V("url", location))
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(location, scheme), "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", goerr.Wrap(ErrInvalidURL, "bucket and object are required", goerr.V("url", location))
	}
	return bucket, object, nil
}

// New creates a Cloud Storage repository for a gs://bucket/object location
func New(ctx context.Context, location string) (*Repository, error) {
	bucket, object, err := ParseURL(location)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}
	return &Repository{client: client, bucket: bucket, object: object}, nil
}

func (r *Repository) handle() *storage.ObjectHandle {
	return r.client.Bucket(r.bucket).Object(r.object)
}

func (r *Repository) Load(ctx context.Context) (*model.MemorySnapshot, error) {
	reader, err := r.handle().NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			logging.From(ctx).Debug("memory object not found",
				slog.String("bucket", r.bucket), slog.String("object", r.object))
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to open memory object",
			goerr.V("bucket", r.bucket), goerr.V("object", r.object))
	}
	defer safe.Close(ctx, reader)

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read memory object",
			goerr.V("bucket", r.bucket), goerr.V("object", r.object))
	}

	snap, err := codec.Decode(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory object",
			goerr.V("bucket", r.bucket), goerr.V("object", r.object))
	}
	return snap, nil
}

// Save uploads the whole snapshot. An object write is only visible once the
// writer is closed successfully.
func (r *Repository) Save(ctx context.Context, snapshot *model.MemorySnapshot) error {
	data, err := codec.Encode(snapshot)
	if err != nil {
		return err
	}

	w := r.handle().NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write memory object",
			goerr.V("bucket", r.bucket), goerr.V("object", r.object))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload memory object",
			goerr.V("bucket", r.bucket), goerr.V("object", r.object))
	}
	return nil
}

func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
