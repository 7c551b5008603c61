package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrEventNotFound = errors.New("event not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrVersionConflict = errors.New("event version changed since read")

	ErrHoldNotFound = errors.New("slot hold not found")

	ErrLockNotAcquired = errors.New("job lock held by another owner")
)
