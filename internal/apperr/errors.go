// Package apperr holds the error kinds shared across attachsync.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrSkipped marks an event whose preconditions were not met. Never shown to the user.
	ErrSkipped = errors.New("skipped")
	// ErrReductionFailure means old and new attachment paths could not be aligned.
	ErrReductionFailure = errors.New("attachment path reduction failed")
	// ErrDestinationCollision means the target location is already occupied.
	ErrDestinationCollision = errors.New("destination already exists")
	// ErrStorageFailure wraps a failed create or move on the vault.
	ErrStorageFailure = errors.New("storage failure")
	// ErrStaleLink means the file moved but no open document could be updated.
	ErrStaleLink = errors.New("reference left stale")
	// ErrNoActiveFile means an operation needed an active note and there was none.
	ErrNoActiveFile = errors.New("no active file")
)
