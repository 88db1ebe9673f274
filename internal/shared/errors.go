package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and transport errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Synchronization errors
	ErrReaderConsumed     = fmt.Errorf("collection reader already consumed")
	ErrPartialApplication = fmt.Errorf("playlist partially updated")

	// Credential rotation errors
	ErrPublisherNotReady = fmt.Errorf("credential publisher has no recipient key")
	ErrPublishFailed     = fmt.Errorf("credential publish failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// PartialApplicationError reports a mutation batch that failed after earlier batches were applied.
//
// The remote playlist is left as the last successful call produced it; the next sync run converges it.
type PartialApplicationError struct {
	Op        string // "insert", "remove" or "append"
	Completed int    // calls that succeeded before the failure, across all operations
	Total     int    // calls the run intended to make
	Err       error
}

func (e *PartialApplicationError) Error() string {
	return fmt.Sprintf("%v: %s failed after %d/%d calls: %v", ErrPartialApplication, e.Op, e.Completed, e.Total, e.Err)
}

func (e *PartialApplicationError) Unwrap() error {
	return e.Err
}

// Is matches [ErrPartialApplication] so callers can test with [errors.Is].
func (e *PartialApplicationError) Is(target error) bool {
	return target == ErrPartialApplication
}

// IsFatal reports whether err should end the run before any mutation is attempted.
// A partial application is never fatal, whatever its cause.
func IsFatal(err error) bool {
	if errors.Is(err, ErrPartialApplication) {
		return false
	}
	return errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrAuthFailed)
}
