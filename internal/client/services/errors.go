package services

import "errors"

var (
	// ErrUnknownReference means the input names a location, user, company or
	// template that is not in the reference cache.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrInvalidRating means a rating is outside models.MinRating..MaxRating.
	ErrInvalidRating = errors.New("rating out of range")

	ErrInvalidInput = errors.New("invalid input")

	ErrNotLoggedIn = errors.New("not logged in")
)
