package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist or
	// belongs to a different admin account.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrVersionConflict is returned when a conditional write observes a
	// record modified since the caller read it.
	ErrVersionConflict = errors.New("persistence: version conflict")
)
