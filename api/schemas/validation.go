package schemas

import (
	"fmt"
	"strings"
)

// ValidationError reports a field-level constraint violation. It carries the
// offending field name so callers can surface precise, per-record messages.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateNonEmptyString fails if the value is empty or whitespace-only.
func ValidateNonEmptyString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "must be a non-empty string")
	}
	return nil
}

// ValidatePositiveInteger fails if the value is zero or negative.
func ValidatePositiveInteger(value int, field string) error {
	if value <= 0 {
		return NewValidationError(field, "must be a positive integer, got %d", value)
	}
	return nil
}

// ValidateProbabilityScore fails if the value falls outside [0.0, 1.0].
func ValidateProbabilityScore(value float64, field string) error {
	if value < 0.0 || value > 1.0 {
		return NewValidationError(field, "must be within [0.0, 1.0], got %g", value)
	}
	return nil
}

// ValidateCount fails if the value is below the configured minimum. The
// minimum is 0 when allowZero is set, 1 otherwise.
func ValidateCount(value int, field string, allowZero bool) error {
	min := 1
	if allowZero {
		min = 0
	}
	if value < min {
		return NewValidationError(field, "must be at least %d, got %d", min, value)
	}
	return nil
}

// ValidateRequiredField fails if the value is absent. A nil interface and an
// empty string both count as absent.
func ValidateRequiredField(value interface{}, field string) error {
	if value == nil {
		return NewValidationError(field, "is required")
	}
	if s, ok := value.(string); ok && s == "" {
		return NewValidationError(field, "is required")
	}
	return nil
}
