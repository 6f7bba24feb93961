package firestore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordDoc is the Firestore document of one memory record. The record
// itself is kept as JSON in Body; Embedding is stored as firestore.Vector32
// for FindNearest vector search.
type recordDoc struct {
	Seq       int64              `firestore:"Seq"`
	GameID    string             `firestore:"GameID"`
	Body      string             `firestore:"Body"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
}

type metaDoc struct {
	Version       int       `firestore:"Version"`
	SavedAt       time.Time `firestore:"SavedAt"`
	Events        int       `firestore:"Events"`
	Patterns      int       `firestore:"Patterns"`
	Relationships int       `firestore:"Relationships"`
	Signals       int       `firestore:"Signals"`
}

func toRecordDoc(seq uint64, gameID model.GameID, record any, embedding []float32) (*recordDoc, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode memory record")
	}
	doc := &recordDoc{
		Seq:    int64(seq), // #nosec G115 - store sequence numbers stay far below MaxInt64
		GameID: string(gameID),
		Body:   string(body),
	}
	if len(embedding) > 0 {
		doc.Embedding = firestore.Vector32(embedding)
	}
	return doc, nil
}

func eventDoc(e *model.MemoryEvent) (string, *recordDoc, error) {
	body := e.Clone()
	body.Embedding = nil
	doc, err := toRecordDoc(e.Seq, e.GameID, body, e.Embedding)
	return string(e.ID), doc, err
}

func patternDoc(p *model.Pattern) (string, *recordDoc, error) {
	body := p.Clone()
	body.Embedding = nil
	doc, err := toRecordDoc(p.Seq, p.GameID, body, p.Embedding)
	return string(p.ID), doc, err
}

func relationshipDoc(r *model.RelationshipRecord) (string, *recordDoc, error) {
	doc, err := toRecordDoc(r.Seq, r.GameID, r, nil)
	return fmt.Sprintf("%020d", r.Seq), doc, err
}

func signalDoc(s *model.Signal) (string, *recordDoc, error) {
	doc, err := toRecordDoc(0, s.GameID, s, nil)
	return s.ID, doc, err
}

func decodeEvent(d *recordDoc) (*model.MemoryEvent, error) {
	var e model.MemoryEvent
	if err := json.Unmarshal([]byte(d.Body), &e); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory event")
	}
	if len(d.Embedding) > 0 {
		e.Embedding = []float32(d.Embedding)
	}
	return &e, nil
}

func decodePattern(d *recordDoc) (*model.Pattern, error) {
	var p model.Pattern
	if err := json.Unmarshal([]byte(d.Body), &p); err != nil {
		return nil, goerr.Wrap(err, "failed to decode pattern")
	}
	if len(d.Embedding) > 0 {
		p.Embedding = []float32(d.Embedding)
	}
	return &p, nil
}

func decodeRelationship(d *recordDoc) (*model.RelationshipRecord, error) {
	var r model.RelationshipRecord
	if err := json.Unmarshal([]byte(d.Body), &r); err != nil {
		return nil, goerr.Wrap(err, "failed to decode relationship record")
	}
	return &r, nil
}

func decodeSignal(d *recordDoc) (*model.Signal, error) {
	var s model.Signal
	if err := json.Unmarshal([]byte(d.Body), &s); err != nil {
		return nil, goerr.Wrap(err, "failed to decode signal")
	}
	return &s, nil
}

// Load reads every collection concurrently. The meta document is written
// last by Save, so a missing meta document means nothing has been saved.
func (f *Firestore) Load(ctx context.Context) (*model.MemorySnapshot, error) {
	metaSnap, err := f.collection(MetaCollection).Doc(snapshotDocument).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory metadata")
	}
	var meta metaDoc
	if err := metaSnap.DataTo(&meta); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory metadata")
	}

	snap := &model.MemorySnapshot{Version: meta.Version, SavedAt: meta.SavedAt}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		snap.Events, err = loadAll(ctx, f.collection(EventsCollection), decodeEvent)
		return err
	})
	eg.Go(func() error {
		var err error
		snap.Patterns, err = loadAll(ctx, f.collection(PatternsCollection), decodePattern)
		return err
	})
	eg.Go(func() error {
		var err error
		snap.Relationships, err = loadAll(ctx, f.collection(RelationshipsCollection), decodeRelationship)
		return err
	})
	eg.Go(func() error {
		var err error
		snap.Signals, err = loadAll(ctx, f.collection(SignalsCollection), decodeSignal)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(snap.Signals, func(a, b *model.Signal) int {
		return cmp.Compare(a.EmittedAt, b.EmittedAt)
	})

	snap.Normalize()
	return snap, nil
}

func loadAll[T any](ctx context.Context, coll *firestore.CollectionRef, decode func(*recordDoc) (T, error)) ([]T, error) {
	iter := coll.OrderBy("Seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory records", goerr.V("collection", coll.ID))
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory record", goerr.V("id", doc.Ref.ID))
		}
		v, err := decode(&d)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid memory record", goerr.V("collection", coll.ID), goerr.V("id", doc.Ref.ID))
		}
		out = append(out, v)
	}
	return out, nil
}

// Save writes records missing from Firestore and deletes records absent from
// the snapshot. Records are immutable once written, so existing documents
// are left untouched.
func (f *Firestore) Save(ctx context.Context, snapshot *model.MemorySnapshot) error {
	if snapshot == nil {
		return goerr.New("snapshot is nil")
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return syncRecords(gctx, f, EventsCollection, snapshot.Events, eventDoc)
	})
	eg.Go(func() error {
		return syncRecords(gctx, f, PatternsCollection, snapshot.Patterns, patternDoc)
	})
	eg.Go(func() error {
		return syncRecords(gctx, f, RelationshipsCollection, snapshot.Relationships, relationshipDoc)
	})
	eg.Go(func() error {
		return syncRecords(gctx, f, SignalsCollection, snapshot.Signals, signalDoc)
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	version := snapshot.Version
	if version == 0 {
		version = model.SnapshotVersion
	}
	savedAt := snapshot.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	meta := &metaDoc{
		Version:       version,
		SavedAt:       savedAt,
		Events:        len(snapshot.Events),
		Patterns:      len(snapshot.Patterns),
		Relationships: len(snapshot.Relationships),
		Signals:       len(snapshot.Signals),
	}
	if _, err := f.collection(MetaCollection).Doc(snapshotDocument).Set(ctx, meta); err != nil {
		return goerr.Wrap(err, "failed to save memory metadata")
	}
	return nil
}

func syncRecords[T any](ctx context.Context, f *Firestore, name string, records []T, toDoc func(T) (string, *recordDoc, error)) error {
	coll := f.collection(name)

	existing := make(map[string]*firestore.DocumentRef)
	refs := coll.DocumentRefs(ctx)
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list memory records", goerr.V("collection", coll.ID))
		}
		existing[ref.ID] = ref
	}

	bulkWriter := f.client.BulkWriter(ctx)
	defer bulkWriter.End()

	written := 0
	for _, record := range records {
		id, doc, err := toDoc(record)
		if err != nil {
			return err
		}
		if _, ok := existing[id]; ok {
			delete(existing, id)
			continue
		}
		if _, err := bulkWriter.Set(coll.Doc(id), doc); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("id", id))
		}
		written++
	}
	for id, ref := range existing {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return goerr.Wrap(err, "failed to add Delete operation to bulk writer", goerr.V("id", id))
		}
	}

	bulkWriter.Flush()

	logging.From(ctx).Debug("memory collection synced",
		slog.String("collection", coll.ID),
		slog.Int("written", written),
		slog.Int("deleted", len(existing)),
	)
	return nil
}

// NearestEvents runs a Firestore vector search over event embeddings. The
// vector must have the dimension of the collection's vector index.
func (f *Firestore) NearestEvents(ctx context.Context, vector []float32, limit int) ([]*model.MemoryEvent, error) {
	if limit <= 0 || len(vector) == 0 {
		return []*model.MemoryEvent{}, nil
	}
	vq := f.collection(EventsCollection).
		FindNearest("Embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	events := make([]*model.MemoryEvent, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate event vector search results")
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal event from vector search")
		}
		e, err := decodeEvent(&d)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// GameEvents returns the events of one game in store order
func (f *Firestore) GameEvents(ctx context.Context, gameID model.GameID) ([]*model.MemoryEvent, error) {
	iter := f.collection(EventsCollection).
		Where("GameID", "==", string(gameID)).
		OrderBy("Seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	events := make([]*model.MemoryEvent, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate game events", goerr.V("gameID", gameID))
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal game event", goerr.V("gameID", gameID))
		}
		e, err := decodeEvent(&d)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
