package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
)

// Collection names, before the optional prefix
const (
	EventsCollection        = "memory_events"
	PatternsCollection      = "memory_patterns"
	RelationshipsCollection = "memory_relationships"
	SignalsCollection       = "memory_signals"
	MetaCollection          = "memory_meta"

	snapshotDocument = "snapshot"
)

// Firestore stores the memory snapshot as one document per record
type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.MemoryRepository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every collection, e.g. per test run
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// New connects to a Firestore database. An empty databaseID selects the
// default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project ID is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) collection(name string) *firestore.CollectionRef {
	return f.client.Collection(f.collectionPrefix + name)
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
