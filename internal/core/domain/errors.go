package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent engine failures callers can act on.
// Adapters wrap them with context using fmt.Errorf and %w.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidContentType indicates an unknown content type.
	ErrInvalidContentType = fmt.Errorf("%w: unknown content type", ErrInvalidInput)

	// ErrDimensionMismatch indicates a vector length disagrees with the
	// configured dimension for its content type. Nothing is written.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrStorageIO indicates the durable store is unavailable or a
	// transaction failed.
	ErrStorageIO = errors.New("storage error")

	// ErrTimeout indicates the operation deadline expired.
	ErrTimeout = errors.New("operation timed out")

	// ErrIndexUnavailable signals that no usable index snapshot exists.
	// Search falls back to brute force; callers never see it.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Text queries are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// DimensionMismatchError carries the expected and actual vector length.
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	ContentType ContentType
	Expected    int
	Actual      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.ContentType, e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// WrapStorageError classifies a backend error for the operation op.
// Deadline expiry becomes ErrTimeout, domain errors pass through and
// anything else becomes ErrStorageIO. Returns nil for a nil error.
func WrapStorageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrStorageIO):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
	}
}
