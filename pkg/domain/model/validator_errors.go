package model

import "github.com/m-mizutani/goerr/v2"

// Validation errors
var (
	ErrNoImageURLs     = goerr.New("no image URLs supplied")
	ErrInvalidImageURL = goerr.New("invalid image URL")
	ErrInvalidContext  = goerr.New("invalid assessment context")
	ErrInvalidReview   = goerr.New("invalid review")
)

// Context keys for error values
const (
	InvalidURLsKey  = "invalid_urls"
	URLCountKey     = "url_count"
	PropertyAgeKey  = "property_age"
	ReviewerIDKey   = "reviewer_id"
	AssessmentIDKey = "assessment_id"
)

// Persistence errors shared by every repository implementation
var (
	ErrAssessmentNotFound = goerr.New("assessment not found")
	ErrAlreadyReviewed    = goerr.New("assessment is no longer pending")
)
