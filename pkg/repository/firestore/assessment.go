package firestore

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// assessmentDoc is the Firestore document representation of model.AssessmentRecord.
// The assessment itself is kept as a JSON string so the schema of the model output
// never leaks into Firestore field paths.
type assessmentDoc struct {
	ID               string     `firestore:"id"`
	ImageURLs        []string   `firestore:"image_urls"`
	Context          string     `firestore:"context,omitempty"`
	AssessmentData   string     `firestore:"assessment_data"`
	ValidationStatus string     `firestore:"validation_status"`
	ValidatedBy      *string    `firestore:"validated_by"`
	ValidatedAt      *time.Time `firestore:"validated_at"`
	ValidationNotes  string     `firestore:"validation_notes"`
	CreatedAt        time.Time  `firestore:"created_at"`
	UpdatedAt        time.Time  `firestore:"updated_at"`
}

func toAssessmentDoc(r *model.AssessmentRecord) (*assessmentDoc, error) {
	data, err := json.Marshal(r.Assessment)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal assessment data", goerr.V("id", r.ID))
	}
	doc := &assessmentDoc{
		ID:               string(r.ID),
		ImageURLs:        r.ImageURLs,
		AssessmentData:   string(data),
		ValidationStatus: string(r.Validation.Status),
		ValidatedBy:      r.Validation.ValidatedBy.Ptr(),
		ValidatedAt:      r.Validation.ValidatedAt,
		ValidationNotes:  r.Validation.Notes,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.Context != nil {
		raw, err := json.Marshal(r.Context)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal context", goerr.V("id", r.ID))
		}
		doc.Context = string(raw)
	}
	return doc, nil
}

func fromAssessmentDoc(d *assessmentDoc) (*model.AssessmentRecord, error) {
	r := &model.AssessmentRecord{
		ID:        model.AssessmentID(d.ID),
		ImageURLs: d.ImageURLs,
		Validation: model.Validation{
			Status:      types.ValidationStatus(d.ValidationStatus),
			ValidatedBy: model.ValidatedByFromPtr(d.ValidatedBy),
			ValidatedAt: d.ValidatedAt,
			Notes:       d.ValidationNotes,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(d.AssessmentData), &r.Assessment); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal assessment data", goerr.V("id", d.ID))
	}
	if d.Context != "" {
		r.Context = &model.AssessmentContext{}
		if err := json.Unmarshal([]byte(d.Context), r.Context); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal context", goerr.V("id", d.ID))
		}
	}
	return r, nil
}

type assessmentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAssessmentRepository(client *firestore.Client) *assessmentRepository {
	return &assessmentRepository{client: client}
}

func (r *assessmentRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + AssessmentsCollection)
}

func (r *assessmentRepository) Create(ctx context.Context, record *model.AssessmentRecord) (*model.AssessmentRecord, error) {
	created := *record
	if created.ID == "" {
		created.ID = model.NewAssessmentID()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	created.Validation.Status = created.Validation.Status.Normalize()

	doc, err := toAssessmentDoc(&created)
	if err != nil {
		return nil, err
	}

	if _, err := r.collection().Doc(doc.ID).Create(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create assessment", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *assessmentRepository) Get(ctx context.Context, id model.AssessmentID) (*model.AssessmentRecord, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrAssessmentNotFound, "assessment not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get assessment", goerr.V("id", id))
	}

	var d assessmentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal assessment", goerr.V("id", id))
	}
	return fromAssessmentDoc(&d)
}

func (r *assessmentRepository) UpdateValidation(ctx context.Context, id model.AssessmentID, validation model.Validation) (*model.AssessmentRecord, error) {
	docRef := r.collection().Doc(string(id))

	var updated assessmentDoc
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrAssessmentNotFound, "assessment not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get assessment", goerr.V("id", id))
		}

		var d assessmentDoc
		if err := snap.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal assessment", goerr.V("id", id))
		}

		current := types.ValidationStatus(d.ValidationStatus)
		if !current.CanTransitionTo(validation.Status) {
			return goerr.Wrap(model.ErrAlreadyReviewed, "validation transition rejected",
				goerr.V("id", id),
				goerr.V("from", current),
				goerr.V("to", validation.Status))
		}

		d.ValidationStatus = string(validation.Status)
		d.ValidatedBy = validation.ValidatedBy.Ptr()
		d.ValidatedAt = validation.ValidatedAt
		d.ValidationNotes = validation.Notes
		d.UpdatedAt = time.Now().UTC()
		updated = d

		return tx.Update(docRef, []firestore.Update{
			{Path: "validation_status", Value: d.ValidationStatus},
			{Path: "validated_by", Value: d.ValidatedBy},
			{Path: "validated_at", Value: d.ValidatedAt},
			{Path: "validation_notes", Value: d.ValidationNotes},
			{Path: "updated_at", Value: d.UpdatedAt},
		})
	})
	if err != nil {
		return nil, err
	}

	return fromAssessmentDoc(&updated)
}

func (r *assessmentRepository) CountValidated(ctx context.Context) (int, error) {
	result, err := r.collection().
		Where("validation_status", "==", string(types.ValidationStatusValidated)).
		NewAggregationQuery().
		WithCount("count").
		Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count validated assessments")
	}

	v, ok := result["count"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count aggregation result", goerr.V("result", result))
	}
	return int(v.GetIntegerValue()), nil
}

func (r *assessmentRepository) ListValidated(ctx context.Context, since time.Time) ([]*model.AssessmentRecord, error) {
	iter := r.collection().
		Where("validation_status", "==", string(types.ValidationStatusValidated)).
		Where("validated_at", ">", since).
		OrderBy("validated_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	records := make([]*model.AssessmentRecord, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate validated assessments")
		}

		var d assessmentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal assessment", goerr.V("id", snap.Ref.ID))
		}
		record, err := fromAssessmentDoc(&d)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}
