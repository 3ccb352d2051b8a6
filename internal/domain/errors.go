package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing parent document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidSchema signals an invalid document or criteria definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrUnknownField signals access to a field the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrCriteriaResolution signals that a criteria reference value could not be resolved.
	ErrCriteriaResolution = errors.New("criteria resolution failed")
	// ErrMandatoryFieldMissing signals a write that would leave a mandatory field empty.
	ErrMandatoryFieldMissing = errors.New("mandatory field missing")
	// ErrInvalidReference signals a reference field holding something other than a record id.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrReentrantWrite signals a write-back attempted from inside its own trigger.
	ErrReentrantWrite = errors.New("re-entrant write-back")
)

// CriteriaResolutionError wraps ErrCriteriaResolution with the unresolved reference.
type CriteriaResolutionError struct {
	Field string
	Type  string
	Code  string
	Err   error // underlying lookup failure, nil when the code simply has no match
}

func (e *CriteriaResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %s %q for field %q", ErrCriteriaResolution.Error(), e.Type, e.Code, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CriteriaResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCriteriaResolution}
	}
	return []error{ErrCriteriaResolution, e.Err}
}

// NewCriteriaResolution creates a criteria resolution error.
func NewCriteriaResolution(field, refType, code string, cause error) error {
	return &CriteriaResolutionError{Field: field, Type: refType, Code: code, Err: cause}
}
