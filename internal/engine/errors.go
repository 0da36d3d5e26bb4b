package engine

import (
	"errors"
	"fmt"

	"pbpd/internal/features"
	"pbpd/internal/material"
	"pbpd/internal/ml"
)

// Kind classifies pipeline errors for reporting and metrics. Every kind is
// row-scoped and non-retryable: the same input always fails the same way.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingField
	KindDivisionByZero
	KindModelLoad
	KindPredictionFailure
	KindUnknownMaterial
	KindMalformedRow
)

func (k Kind) String() string {
	switch k {
	case KindMissingField:
		return "MissingField"
	case KindDivisionByZero:
		return "DivisionByZero"
	case KindModelLoad:
		return "ModelLoadError"
	case KindPredictionFailure:
		return "PredictionFailure"
	case KindUnknownMaterial:
		return "UnknownMaterial"
	case KindMalformedRow:
		return "MalformedRow"
	default:
		return "Unknown"
	}
}

// PredictionFailureError wraps an internal model error during prediction.
type PredictionFailureError struct {
	Material material.Group
	cause    error
}

func (e *PredictionFailureError) Error() string {
	return fmt.Sprintf("%s model prediction failed: %v", e.Material, e.cause)
}

func (e *PredictionFailureError) Unwrap() error { return e.cause }

// MalformedRowError reports a batch row that could not be parsed into a
// measurement (non-numeric field, wrong column count).
type MalformedRowError struct {
	Row    int
	Column string
	cause  error
}

func (e *MalformedRowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d: malformed value in column %s: %v", e.Row, e.Column, e.cause)
	}
	return fmt.Sprintf("row %d: malformed row: %v", e.Row, e.cause)
}

func (e *MalformedRowError) Unwrap() error { return e.cause }

// NewMalformedRowError builds a MalformedRowError for a row and column.
func NewMalformedRowError(row int, column string, cause error) *MalformedRowError {
	return &MalformedRowError{Row: row, Column: column, cause: cause}
}

// KindOf maps any pipeline error to its taxonomy kind.
func KindOf(err error) Kind {
	var (
		missing   *features.MissingFieldError
		divzero   *features.DivisionByZeroError
		modelLoad *ml.ModelLoadError
		predict   *PredictionFailureError
		unknown   *material.UnknownMaterialError
		malformed *MalformedRowError
	)
	switch {
	case errors.As(err, &missing):
		return KindMissingField
	case errors.As(err, &divzero):
		return KindDivisionByZero
	case errors.As(err, &modelLoad):
		return KindModelLoad
	case errors.As(err, &predict):
		return KindPredictionFailure
	case errors.As(err, &unknown):
		return KindUnknownMaterial
	case errors.As(err, &malformed):
		return KindMalformedRow
	default:
		return KindUnknown
	}
}
