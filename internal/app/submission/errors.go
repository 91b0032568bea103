package submission

import (
	"errors"
	"fmt"

	"match-reward-engine/internal/security"
)

var ErrInvalidRequest = errors.New("invalid_request")

// Structural error codes.
const (
	CodeMissingField = "missing_field"
	CodeInvalidValue = "invalid_value"
	CodeOutOfRange   = "out_of_range"
)

// StructuralError rejects a malformed request before any state is touched.
// It is never retryable.
type StructuralError struct {
	Field string
	Code  string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Field)
}

func (e *StructuralError) Unwrap() error {
	return ErrInvalidRequest
}

// InfrastructureError reports a store failure outside the gate, such as
// recording an accepted match. Like the gate's, it matches
// security.ErrStoreUnavailable.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", security.ErrStoreUnavailable, e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() []error {
	return []error{security.ErrStoreUnavailable, e.Err}
}
