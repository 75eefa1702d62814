package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a transformation failed.
type FailureKind string

const (
	FailureInvalidInput       FailureKind = "invalid_input"
	FailureBlocked            FailureKind = "blocked"
	FailureGenerationHalted   FailureKind = "generation_halted"
	FailureTextInsteadOfImage FailureKind = "text_instead_of_image"
	FailureEmptyResult        FailureKind = "empty_result"
	FailureUnknown            FailureKind = "unknown"
)

// TransformError carries a classified failure with a message suitable for
// showing to the user verbatim.
type TransformError struct {
	Kind    FailureKind
	Message string
}

func (e *TransformError) Error() string {
	return e.Message
}

// NewTransformError builds a classified error with a formatted message.
func NewTransformError(kind FailureKind, format string, args ...any) *TransformError {
	return &TransformError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the failure classification from an error chain. Errors
// that carry no classification report FailureUnknown.
func KindOf(err error) FailureKind {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Kind
	}
	return FailureUnknown
}
