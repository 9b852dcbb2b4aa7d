package file

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrActionInFlight indicates another action is still executing for the file.
	ErrActionInFlight = errors.New("action already in flight")
	// ErrSelectionChanged rejects a confirm whose action was re-selected by
	// another session since it was chosen.
	ErrSelectionChanged = errors.New("selected action changed")
	// ErrInvalidBlobRef indicates a malformed blob reference.
	ErrInvalidBlobRef = errors.New("invalid blob reference")
)

// ValidationError reports bad input caught before any gateway call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayError wraps a persistence failure, carrying whether the caller
// may retry the operation with the same input.
type GatewayError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// CleanupWarning accompanies a successful delete whose blob removal failed.
// The metadata record is already gone, so the file no longer appears in
// queries; the orphaned blob is recoverable garbage, not a failure.
type CleanupWarning struct {
	BlobRef string
	Err     error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("blob cleanup pending for %s: %v", w.BlobRef, w.Err)
}

func (w *CleanupWarning) Unwrap() error { return w.Err }
