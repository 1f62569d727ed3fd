package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"google.golang.org/api/iterator"
)

const distanceField = "vector_distance"

// FeaturesField is the vector-indexed field of memory entries
const FeaturesField = "features"

// memoryDoc is the Firestore document representation of model.MemoryEntry.
// Features are stored as firestore.Vector64 for FindNearest vector search.
type memoryDoc struct {
	ID           string             `firestore:"id"`
	Agent        string             `firestore:"agent"`
	Features     firestore.Vector64 `firestore:"features"`
	Values       []float64          `firestore:"values"`
	AssessmentID string             `firestore:"assessment_id"`
	CreatedAt    time.Time          `firestore:"created_at"`
}

func toMemoryDoc(e *model.MemoryEntry) *memoryDoc {
	return &memoryDoc{
		ID:           string(e.ID),
		Agent:        e.Agent,
		Features:     firestore.Vector64(e.Features.Slice()),
		Values:       e.Values[:],
		AssessmentID: string(e.AssessmentID),
		CreatedAt:    e.CreatedAt,
	}
}

func fromMemoryDoc(d *memoryDoc) *model.MemoryEntry {
	e := &model.MemoryEntry{
		ID:           model.MemoryEntryID(d.ID),
		Agent:        d.Agent,
		Features:     model.NewFeatureVector(d.Features),
		AssessmentID: model.AssessmentID(d.AssessmentID),
		CreatedAt:    d.CreatedAt,
	}
	copy(e.Values[:], d.Values)
	return e
}

type memoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newMemoryRepository(client *firestore.Client) *memoryRepository {
	return &memoryRepository{client: client}
}

func (r *memoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + MemoryEntriesCollection)
}

func (r *memoryRepository) Append(ctx context.Context, entry *model.MemoryEntry) (*model.MemoryEntry, error) {
	if entry.Agent == "" {
		return nil, goerr.New("memory agent is required")
	}

	created := *entry
	if created.ID == "" {
		created.ID = model.NewMemoryEntryID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection().Doc(string(created.ID)).Set(ctx, toMemoryDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to append memory entry", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *memoryRepository) FindNearest(ctx context.Context, agent string, fv model.FeatureVector, since time.Time, limit int) ([]*model.ScoredMemoryEntry, error) {
	if limit <= 0 {
		return []*model.ScoredMemoryEntry{}, nil
	}

	q := r.collection().Where("agent", "==", agent)
	if !since.IsZero() {
		q = q.Where("created_at", ">=", since)
	}

	vq := q.FindNearest(FeaturesField, firestore.Vector64(fv.Slice()), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	scored := make([]*model.ScoredMemoryEntry, 0, limit)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results", goerr.V("agent", agent))
		}

		var d memoryDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory entry", goerr.V("id", snap.Ref.ID))
		}

		distance, err := snap.DataAt(distanceField)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read vector distance", goerr.V("id", snap.Ref.ID))
		}
		dist, ok := distance.(float64)
		if !ok {
			return nil, goerr.New("vector distance is not a number", goerr.V("value", distance))
		}

		scored = append(scored, &model.ScoredMemoryEntry{
			Entry:      fromMemoryDoc(&d),
			Similarity: 1 - dist,
		})
	}

	return scored, nil
}
