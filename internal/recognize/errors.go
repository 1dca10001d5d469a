package recognize

import (
	"errors"
	"fmt"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
)

// ErrorKind classifies backend failures. Every failure a Recognizer can
// surface maps to exactly one kind.
type ErrorKind string

const (
	KindUnavailable     ErrorKind = "BackendUnavailable"
	KindBillingDisabled ErrorKind = "BillingDisabled"
	KindQuotaExceeded   ErrorKind = "QuotaExceeded"
)

// BackendError is a classified failure from one recognition backend.
type BackendError struct {
	Backend constants.BackendID
	Kind    ErrorKind
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// NewBackendError wraps cause with a backend identity and kind.
func NewBackendError(backend constants.BackendID, kind ErrorKind, cause error) *BackendError {
	return &BackendError{Backend: backend, Kind: kind, Cause: cause}
}

// ExtractionFailedError is the terminal error when the primary attempt and
// the single fallback hop both failed. It carries both underlying reasons.
type ExtractionFailedError struct {
	Primary  error
	Fallback error
}

func (e *ExtractionFailedError) Error() string {
	switch {
	case e.Primary != nil && e.Fallback != nil:
		return fmt.Sprintf("extraction failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
	case e.Fallback != nil:
		return fmt.Sprintf("extraction failed: fallback: %v", e.Fallback)
	default:
		return fmt.Sprintf("extraction failed: primary: %v", e.Primary)
	}
}

// AsBackendError unwraps err to a *BackendError if it is one.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
