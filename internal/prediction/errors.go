package prediction

import "fmt"

// ModelNotFoundError reports a dispatch against an identifier absent from the
// registry. It is a caller error: the API channel maps it to 404.
type ModelNotFoundError struct {
	ModelID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.ModelID)
}

// ExecutionError wraps a failure raised by the plugged-in model capability.
// The dispatcher never retries; the caller decides channel-specific handling.
type ExecutionError struct {
	ModelID string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("model %q failed: %v", e.ModelID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
