package classifier

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned by every call on a handle whose model
// failed to load.
var ErrModelUnavailable = errors.New("classifier: model unavailable")

// ErrShapeMismatch indicates a feature vector or output row of the wrong length.
var ErrShapeMismatch = errors.New("classifier: shape mismatch")

// ErrRemoteUnavailable indicates the inference server is not reachable.
var ErrRemoteUnavailable = errors.New("classifier: remote model unavailable")

// ErrRemoteTimeout indicates the inference server took too long to respond.
var ErrRemoteTimeout = errors.New("classifier: remote model timeout")

// InferenceError wraps any failure of a loaded model to produce a usable prediction.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("classifier: inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// RemoteError represents an error status returned by the inference server.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote model error (status %d): %s", e.StatusCode, e.Message)
}

// IsRemoteError checks if an error is a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
