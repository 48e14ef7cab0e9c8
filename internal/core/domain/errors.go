package domain

import "errors"

var (
	// ErrInsufficientStock is a business failure: the requested quantity
	// exceeds what is left. The order stands; stock was not reserved.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNotFound means no counter exists for the product key.
	ErrNotFound = errors.New("stock not found")

	// ErrConflictRetry signals a stale version token; the caller should
	// re-read and retry.
	ErrConflictRetry = errors.New("optimistic lock conflict")

	// ErrExhausted is surfaced after the bounded retry budget runs out.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrStoreUnavailable is an infrastructure fault, fatal for the request.
	ErrStoreUnavailable = errors.New("stock store unavailable")
)
