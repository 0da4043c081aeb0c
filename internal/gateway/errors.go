package gateway

import "errors"

var (
	// ErrUnavailable means the model capability is absent or reported
	// unsupported. It is sticky: the gateway stays unavailable until
	// Initialize is called again.
	ErrUnavailable = errors.New("model capability unavailable")

	// ErrDownload wraps failures while fetching model assets.
	ErrDownload = errors.New("model download failed")

	// ErrTimeout means a model call exceeded its budget. It is
	// distinguishable from other failures so callers can pick retry
	// behavior.
	ErrTimeout = errors.New("model call timed out")

	// ErrMalformedResponse means output failed schema validation or JSON
	// parsing. Treated like any other model failure for retry purposes.
	ErrMalformedResponse = errors.New("malformed model response")
)
