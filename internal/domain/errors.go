package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict: idempotency key already exists")
	ErrInvalidTarget    = errors.New("target must be an absolute http(s) URL")
	ErrInvalidPriority  = errors.New("invalid priority: must be high, normal, or low")
	ErrEmptyCard        = errors.New("card must contain at least one section")
	ErrCardTooLarge     = errors.New("serialized card exceeds 30 KiB")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum of 1000 notifications")
	ErrBatchEmpty       = errors.New("batch must contain at least one notification")
	ErrAlreadyCancelled = errors.New("notification is already cancelled")
	ErrNotCancellable   = errors.New("notification cannot be cancelled in its current status")
	ErrQueueFull        = errors.New("queue is at capacity, try again later")
)
