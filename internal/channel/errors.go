package channel

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors shared across adapters and the gateway façade.
var (
	// ErrUnsupported marks an operation that is not meaningful for the
	// channel kind it was invoked on.
	ErrUnsupported = errors.New("operation not supported for channel")
	// ErrNotFound marks a missing message, media object, or routing record.
	ErrNotFound = errors.New("not found")
	// ErrInstanceNotFound marks a session instance unknown to the provider.
	ErrInstanceNotFound = errors.New("instance not found")
)

// ValidationError reports a missing or malformed required field. It is
// raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CredentialError reports that no usable credential could be resolved for an
// operation. Resolution failure is fatal for the operation, never retried
// silently.
type CredentialError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s credential resolution: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s credential resolution: %s", e.Kind, e.Detail)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure (dial, timeout, broken body)
// talking to a provider. Retry policy belongs to the caller, not the adapter.
type TransportError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a structured rejection from the provider. Payload is
// the provider's response body verbatim, uninterpreted, for diagnostics.
type ProviderError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Payload    json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: provider rejected (status %d): %s", e.Kind, e.Op, e.StatusCode, string(e.Payload))
}

// IsProviderRejected reports whether err is a ProviderError.
func IsProviderRejected(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsCredential reports whether err is a CredentialError.
func IsCredential(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}
