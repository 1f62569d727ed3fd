package interfaces

import (
	"context"
	"time"

	"github.com/mintenance/surveyor/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	Assessment() AssessmentRepository
	Memory() MemoryRepository
	Close() error
}

// AssessmentRepository defines the interface for assessment record persistence
type AssessmentRepository interface {
	// Create stores a new record. The record must be pending.
	Create(ctx context.Context, record *model.AssessmentRecord) (*model.AssessmentRecord, error)

	// Get retrieves a record by ID
	Get(ctx context.Context, id model.AssessmentID) (*model.AssessmentRecord, error)

	// UpdateValidation sets the validation state of a pending record.
	// Any record that is no longer pending is left untouched and ErrAlreadyReviewed is returned.
	UpdateValidation(ctx context.Context, id model.AssessmentID, validation model.Validation) (*model.AssessmentRecord, error)

	// CountValidated returns the number of records whose status is validated
	CountValidated(ctx context.Context) (int, error)

	// ListValidated returns validated records with ValidatedAt strictly after since, oldest first
	ListValidated(ctx context.Context, since time.Time) ([]*model.AssessmentRecord, error)
}

// MemoryRepository defines the interface for memory entry persistence
type MemoryRepository interface {
	// Append stores a new memory entry
	Append(ctx context.Context, entry *model.MemoryEntry) (*model.MemoryEntry, error)

	// FindNearest returns up to limit entries of agent created at or after since
	// (zero since means unbounded), most similar first by cosine similarity.
	FindNearest(ctx context.Context, agent string, fv model.FeatureVector, since time.Time, limit int) ([]*model.ScoredMemoryEntry, error)
}
