package domain

import "errors"

var (
	ErrMissingInput        = errors.New("missing_input")
	ErrInvalidImage        = errors.New("invalid_image")
	ErrMissingOutput       = errors.New("missing_output_image")
	ErrMissingGenerationID = errors.New("missing_generation_id")
	ErrInvalidFeedback     = errors.New("invalid_feedback")
	ErrInvalidRating       = errors.New("invalid_rating")
	ErrGenerationNotFound  = errors.New("generation_not_found")
	ErrProviderNotFound    = errors.New("provider_not_found")
	ErrProviderFailure     = errors.New("provider_failure")
	ErrEmptyResult         = errors.New("provider_empty_result")
)
