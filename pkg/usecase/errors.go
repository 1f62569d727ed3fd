package usecase

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	// Request errors, fatal to the request
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrExternalService = errors.New("external service error")

	// ErrDegraded marks a tolerated sub-call failure. It is only logged, never returned.
	ErrDegraded = errors.New("degraded result")

	// Persistence errors
	ErrAssessmentNotFound = model.ErrAssessmentNotFound
	ErrAlreadyReviewed    = model.ErrAlreadyReviewed
)

// Context keys for error values
const (
	AssessmentIDKey = model.AssessmentIDKey
	SubCallKey      = "sub_call"
	ProviderKey     = "provider"
)

// asValidationError rewraps a model validation error under ErrValidation, keeping its message and values
func asValidationError(err error) error {
	var opts []goerr.Option
	if gerr := goerr.Unwrap(err); gerr != nil {
		for k, v := range gerr.Values() {
			opts = append(opts, goerr.V(k, v))
		}
	}
	return goerr.Wrap(ErrValidation, err.Error(), opts...)
}
