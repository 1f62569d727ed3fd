package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

type assessmentRepository struct {
	db *sql.DB
}

const assessmentColumns = `id, image_urls, context, assessment_data, validation_status,
	validated_by, validated_at, validation_notes, created_at, updated_at`

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

	urls, err := json.Marshal(created.ImageURLs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal image urls")
	}
	var actx sql.NullString
	if created.Context != nil {
		raw, err := json.Marshal(created.Context)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal context")
		}
		actx = sql.NullString{String: string(raw), Valid: true}
	}
	data, err := json.Marshal(created.Assessment)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal assessment data")
	}

	var validatedAt sql.NullInt64
	if created.Validation.ValidatedAt != nil {
		validatedAt = sql.NullInt64{Int64: toUnixNano(*created.Validation.ValidatedAt), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO assessments (`+assessmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(created.ID), string(urls), actx, string(data),
		string(created.Validation.Status), nullString(created.Validation.ValidatedBy.Ptr()),
		validatedAt, created.Validation.Notes,
		toUnixNano(created.CreatedAt), toUnixNano(created.UpdatedAt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert assessment", goerr.V("id", created.ID))
	}

	return r.Get(ctx, created.ID)
}

func (r *assessmentRepository) Get(ctx context.Context, id model.AssessmentID) (*model.AssessmentRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, string(id))
	record, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrAssessmentNotFound, "assessment not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get assessment", goerr.V("id", id))
	}
	return record, nil
}

func (r *assessmentRepository) UpdateValidation(ctx context.Context, id model.AssessmentID, validation model.Validation) (*model.AssessmentRecord, error) {
	if !types.ValidationStatusPending.CanTransitionTo(validation.Status) {
		return nil, goerr.Wrap(model.ErrAlreadyReviewed, "validation transition rejected",
			goerr.V("id", id), goerr.V("to", validation.Status))
	}

	var validatedAt sql.NullInt64
	if validation.ValidatedAt != nil {
		validatedAt = sql.NullInt64{Int64: toUnixNano(*validation.ValidatedAt), Valid: true}
	}

	// compare-and-set on the pending status
	res, err := r.db.ExecContext(ctx, `UPDATE assessments
		SET validation_status = ?, validated_by = ?, validated_at = ?, validation_notes = ?, updated_at = ?
		WHERE id = ? AND validation_status = ?`,
		string(validation.Status), nullString(validation.ValidatedBy.Ptr()), validatedAt, validation.Notes,
		toUnixNano(time.Now()), string(id), string(types.ValidationStatusPending))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update validation", goerr.V("id", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read affected rows", goerr.V("id", id))
	}
	if n == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, goerr.Wrap(model.ErrAlreadyReviewed, "validation transition rejected",
			goerr.V("id", id),
			goerr.V("from", current.Validation.Status),
			goerr.V("to", validation.Status))
	}

	return r.Get(ctx, id)
}

func (r *assessmentRepository) CountValidated(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments WHERE validation_status = ?`,
		string(types.ValidationStatusValidated)).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count validated assessments")
	}
	return count, nil
}

func (r *assessmentRepository) ListValidated(ctx context.Context, since time.Time) ([]*model.AssessmentRecord, error) {
	lowerBound := int64(math.MinInt64)
	if !since.IsZero() {
		lowerBound = toUnixNano(since)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+assessmentColumns+` FROM assessments
		WHERE validation_status = ? AND validated_at > ?
		ORDER BY validated_at ASC`,
		string(types.ValidationStatusValidated), lowerBound)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list validated assessments")
	}
	defer rows.Close()

	records := make([]*model.AssessmentRecord, 0)
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan assessment")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate assessments")
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (*model.AssessmentRecord, error) {
	var (
		record      model.AssessmentRecord
		id, status  string
		urls, data  string
		actx        sql.NullString
		validatedBy sql.NullString
		validatedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(&id, &urls, &actx, &data, &status, &validatedBy, &validatedAt,
		&record.Validation.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record.ID = model.AssessmentID(id)
	if err := json.Unmarshal([]byte(urls), &record.ImageURLs); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal image urls", goerr.V("id", id))
	}
	if actx.Valid {
		record.Context = &model.AssessmentContext{}
		if err := json.Unmarshal([]byte(actx.String), record.Context); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal context", goerr.V("id", id))
		}
	}
	if err := json.Unmarshal([]byte(data), &record.Assessment); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal assessment data", goerr.V("id", id))
	}

	record.Validation.Status = types.ValidationStatus(status)
	if validatedBy.Valid {
		record.Validation.ValidatedBy = model.HumanValidator(validatedBy.String)
	}
	if validatedAt.Valid {
		at := fromUnixNano(validatedAt.Int64)
		record.Validation.ValidatedAt = &at
	}
	record.CreatedAt = fromUnixNano(createdAt)
	record.UpdatedAt = fromUnixNano(updatedAt)

	return &record, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
