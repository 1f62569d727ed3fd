package types

import "fmt"

// ValidationStatus represents the review state of an assessment
type ValidationStatus string

const (
	ValidationStatusPending   ValidationStatus = "pending"
	ValidationStatusValidated ValidationStatus = "validated"
	ValidationStatusRejected  ValidationStatus = "rejected"
)

// AllValidationStatuses returns all valid validation statuses
func AllValidationStatuses() []ValidationStatus {
	return []ValidationStatus{
		ValidationStatusPending,
		ValidationStatusValidated,
		ValidationStatusRejected,
	}
}

// IsValid checks if the validation status is valid
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationStatusPending,
		ValidationStatusValidated,
		ValidationStatusRejected:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as pending
func (s ValidationStatus) Normalize() ValidationStatus {
	if s == "" {
		return ValidationStatusPending
	}
	return s
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only pending may move, and only to validated or rejected.
func (s ValidationStatus) CanTransitionTo(next ValidationStatus) bool {
	if s.Normalize() != ValidationStatusPending {
		return false
	}
	return next == ValidationStatusValidated || next == ValidationStatusRejected
}

// String returns the string representation of the validation status
func (s ValidationStatus) String() string {
	return string(s)
}

// ParseValidationStatus parses a string into a ValidationStatus
func ParseValidationStatus(s string) (ValidationStatus, error) {
	status := ValidationStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid validation status: %s", s)
	}
	return status, nil
}
