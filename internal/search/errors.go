package search

import "errors"

var (
	// ErrValidation is returned when user input cannot be assembled into a
	// well-formed search request. The user must correct and resubmit.
	ErrValidation = errors.New("invalid search input")

	// ErrUnknownCollection is returned when the requested collection is not
	// among the configured known collections.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrNoArea is returned when no search area has been captured yet.
	ErrNoArea = errors.New("no search area captured")
)
