package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/types"
)

// ValidatedBy tells who validated an assessment. The zero value is System.
// Persisted and serialized as null for System and the reviewer ID for a human.
type ValidatedBy struct {
	humanID string
}

// SystemValidator is the auto-validation gate
func SystemValidator() ValidatedBy {
	return ValidatedBy{}
}

// HumanValidator is a reviewer identified by id
func HumanValidator(id string) ValidatedBy {
	return ValidatedBy{humanID: id}
}

// IsSystem reports whether the gate validated the assessment
func (v ValidatedBy) IsSystem() bool {
	return v.humanID == ""
}

// HumanID returns the reviewer ID and whether the validator is a human
func (v ValidatedBy) HumanID() (string, bool) {
	return v.humanID, v.humanID != ""
}

// Ptr returns nil for System and a pointer to the reviewer ID otherwise
func (v ValidatedBy) Ptr() *string {
	if v.IsSystem() {
		return nil
	}
	id := v.humanID
	return &id
}

// ValidatedByFromPtr is the inverse of Ptr
func ValidatedByFromPtr(id *string) ValidatedBy {
	if id == nil {
		return SystemValidator()
	}
	return HumanValidator(*id)
}

func (v ValidatedBy) String() string {
	if v.IsSystem() {
		return "system"
	}
	return "human:" + v.humanID
}

func (v ValidatedBy) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Ptr())
}

func (v *ValidatedBy) UnmarshalJSON(data []byte) error {
	var id *string
	if err := json.Unmarshal(data, &id); err != nil {
		return goerr.Wrap(err, "failed to unmarshal validated_by")
	}
	*v = ValidatedByFromPtr(id)
	return nil
}

// Validation is the review state of an assessment record
type Validation struct {
	Status      types.ValidationStatus `json:"validation_status"`
	ValidatedBy ValidatedBy            `json:"validated_by"`
	ValidatedAt *time.Time             `json:"validated_at"`
	Notes       string                 `json:"validation_notes,omitempty"`
}

// PendingValidation is the initial state of every record
func PendingValidation() Validation {
	return Validation{Status: types.ValidationStatusPending}
}

// AssessmentRecord is a persisted assessment with its validation state
type AssessmentRecord struct {
	ID         AssessmentID       `json:"id"`
	ImageURLs  []string           `json:"image_urls"`
	Context    *AssessmentContext `json:"context,omitempty"`
	Assessment *Assessment        `json:"assessment_data"`
	Validation Validation         `json:"validation"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
