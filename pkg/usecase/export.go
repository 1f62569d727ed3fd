package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/interfaces"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// ExportUseCase writes validated assessments as training data
type ExportUseCase struct {
	repo interfaces.Repository
	sink interfaces.ExportSink
	now  func() time.Time
}

func NewExportUseCase(repo interfaces.Repository, sink interfaces.ExportSink) *ExportUseCase {
	return &ExportUseCase{repo: repo, sink: sink, now: time.Now}
}

// ExportValidated writes one JSON Lines object with every record validated after since.
// Nothing is written when there are no new records.
func (uc *ExportUseCase) ExportValidated(ctx context.Context, since time.Time) (*model.ExportResult, error) {
	if uc.sink == nil {
		return nil, goerr.Wrap(ErrConfiguration, "export destination is not configured")
	}

	records, err := uc.repo.Assessment().ListValidated(ctx, since)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list validated assessments", goerr.V("since", since))
	}

	result := &model.ExportResult{Since: since, Until: since}
	if len(records) == 0 {
		logging.From(ctx).Info("no newly validated assessments to export", "since", since)
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(TrainingExampleFrom(r)); err != nil {
			return nil, goerr.Wrap(err, "failed to encode training example", goerr.V(AssessmentIDKey, r.ID))
		}
		if r.Validation.ValidatedAt != nil && r.Validation.ValidatedAt.After(result.Until) {
			result.Until = *r.Validation.ValidatedAt
		}
	}

	name := fmt.Sprintf("training/validated-%s.jsonl", uc.now().UTC().Format("20060102T150405Z"))
	location, err := uc.sink.Write(ctx, name, buf.Bytes())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to write training export", goerr.V("name", name))
	}

	result.Location = location
	result.Count = len(records)
	return result, nil
}

// TrainingExampleFrom flattens a validated record
func TrainingExampleFrom(r *model.AssessmentRecord) *model.TrainingExample {
	ex := &model.TrainingExample{
		ID:          r.ID,
		ImageURLs:   r.ImageURLs,
		ValidatedBy: "human",
		Detections:  []model.Detection{},
	}
	if r.Validation.ValidatedBy.IsSystem() {
		ex.ValidatedBy = "system"
	}
	if r.Validation.ValidatedAt != nil {
		ex.ValidatedAt = *r.Validation.ValidatedAt
	}
	if r.Context != nil {
		ex.PropertyType = r.Context.PropertyType
		ex.PropertyAge = r.Context.PropertyAge
	}
	if a := r.Assessment; a != nil {
		ex.DamageType = a.Damage.DamageType
		ex.Severity = a.Damage.Severity
		ex.Urgency = a.Urgency.Urgency
		ex.Confidence = a.Damage.Confidence
		ex.FeatureSource = a.Evidence.FeatureSource
		if len(a.Evidence.Detections) > 0 {
			ex.Detections = a.Evidence.Detections
		}
	}
	return ex
}
