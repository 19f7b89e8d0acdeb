package domain

import "errors"

// Domain errors.
var (
	// ErrUnsupportedURL is returned when a link is not a recognized
	// platform link.
	ErrUnsupportedURL = errors.New("unsupported link")

	// ErrNoMediaFound is returned when every resolution tier was
	// exhausted without yielding any asset.
	ErrNoMediaFound = errors.New("no media found")

	// ErrExtractionFailed is returned when the extraction engine
	// exhausted its retry budget.
	ErrExtractionFailed = errors.New("media extraction failed")

	// ErrPackagingFailed is returned when the delivery artifact could
	// not be assembled. No partial package is ever delivered.
	ErrPackagingFailed = errors.New("packaging failed")

	// ErrRateLimited is returned when an origin rejects us for sending
	// too many requests.
	ErrRateLimited = errors.New("rate limited")
)

// ResolveError wraps an error with request context.
type ResolveError struct {
	RequestID string
	Op        string
	Err       error
}

func (e *ResolveError) Error() string {
	if e.RequestID != "" {
		return e.Op + " [" + e.RequestID + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a new ResolveError.
func NewResolveError(requestID, op string, err error) *ResolveError {
	return &ResolveError{
		RequestID: requestID,
		Op:        op,
		Err:       err,
	}
}
