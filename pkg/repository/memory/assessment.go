package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

type assessmentRepository struct {
	mu      sync.RWMutex
	records map[model.AssessmentID]*model.AssessmentRecord
}

func newAssessmentRepository() *assessmentRepository {
	return &assessmentRepository{
		records: make(map[model.AssessmentID]*model.AssessmentRecord),
	}
}

// copyRecord deep-copies a record so callers never share state with the store
func copyRecord(r *model.AssessmentRecord) (*model.AssessmentRecord, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to copy assessment record", goerr.V("id", r.ID))
	}
	var copied model.AssessmentRecord
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, goerr.Wrap(err, "failed to copy assessment record", goerr.V("id", r.ID))
	}
	return &copied, nil
}

func (r *assessmentRepository) Create(ctx context.Context, record *model.AssessmentRecord) (*model.AssessmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, err := copyRecord(record)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		created.ID = model.NewAssessmentID()
	}
	if _, exists := r.records[created.ID]; exists {
		return nil, goerr.New("assessment already exists", goerr.V("id", created.ID))
	}

	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	created.Validation.Status = created.Validation.Status.Normalize()

	r.records[created.ID] = created
	return copyRecord(created)
}

func (r *assessmentRepository) Get(ctx context.Context, id model.AssessmentID) (*model.AssessmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrAssessmentNotFound, "assessment not found", goerr.V("id", id))
	}
	return copyRecord(record)
}

func (r *assessmentRepository) UpdateValidation(ctx context.Context, id model.AssessmentID, validation model.Validation) (*model.AssessmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrAssessmentNotFound, "assessment not found", goerr.V("id", id))
	}
	if !record.Validation.Status.CanTransitionTo(validation.Status) {
		return nil, goerr.Wrap(model.ErrAlreadyReviewed, "validation transition rejected",
			goerr.V("id", id),
			goerr.V("from", record.Validation.Status),
			goerr.V("to", validation.Status))
	}

	updated, err := copyRecord(record)
	if err != nil {
		return nil, err
	}
	updated.Validation = validation
	updated.UpdatedAt = time.Now().UTC()
	r.records[id] = updated

	return copyRecord(updated)
}

func (r *assessmentRepository) CountValidated(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, record := range r.records {
		if record.Validation.Status == types.ValidationStatusValidated {
			count++
		}
	}
	return count, nil
}

func (r *assessmentRepository) ListValidated(ctx context.Context, since time.Time) ([]*model.AssessmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.AssessmentRecord, 0)
	for _, record := range r.records {
		v := record.Validation
		if v.Status != types.ValidationStatusValidated || v.ValidatedAt == nil || !v.ValidatedAt.After(since) {
			continue
		}
		copied, err := copyRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Validation.ValidatedAt.Before(*result[j].Validation.ValidatedAt)
	})

	return result, nil
}
