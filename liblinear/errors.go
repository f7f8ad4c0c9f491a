package liblinear

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidParameter is wrapped by every configuration error.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidProblem is returned when a problem has inconsistent sizes or unsorted features.
	ErrInvalidProblem = errors.New("invalid problem")
	// ErrUnsortedPath is returned when path strengths are not non-decreasing.
	ErrUnsortedPath = errors.New("regularization path must be non-decreasing")
	// ErrSolverClosed is returned by a solver after Close.
	ErrSolverClosed = errors.New("solver is closed")
	// ErrNotProbabilityModel is returned by PredictProbability for non-logistic models.
	ErrNotProbabilityModel = errors.New("probability output is only supported for logistic regression")
	// ErrInvalidFeatureIndex is returned when a feature index is below 1.
	ErrInvalidFeatureIndex = errors.New("invalid feature index")
	// ErrProblemTooLarge is returned when working arrays would not fit.
	ErrProblemTooLarge = errors.New("problem too large")
	// ErrMalformedModel is returned when a model file cannot be parsed.
	ErrMalformedModel = errors.New("malformed model")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// Unwrap makes every ValidationError match ErrInvalidParameter.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameter
}

// MarshalZerologObject adds the structured fields to a log event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func newValidationError(field, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{Field: field, Reason: reason, Value: value})
}
