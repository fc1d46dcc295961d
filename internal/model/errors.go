package model

import "github.com/rotisserie/eris"

// Failure classes for a signal that produced no lead. Wrap them with eris and
// test with errors.Is.
var (
	// ErrInvalidInput marks empty or unusable signal fields. Recoverable, the
	// signal is skipped.
	ErrInvalidInput = eris.New("invalid input")

	// ErrResolution marks a company that could not be found or created.
	ErrResolution = eris.New("resolution failure")

	// ErrPersistence marks a failed repository write. The signal's writes are
	// rolled back.
	ErrPersistence = eris.New("persistence failure")

	// ErrNotification marks a failed officer notification. Never fatal.
	ErrNotification = eris.New("notification failure")
)
