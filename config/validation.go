package config

import (
	"fmt"
	"strings"
)

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Message)
}

// Validator accumulates field errors so a bad configuration reports every
// problem at once instead of failing on the first.
type Validator struct {
	errors []FieldError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireNonEmpty checks that a string field is set.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, FieldError{Field: field, Message: "value cannot be empty"})
	}
	return v
}

// RequirePositive checks that an integer field is greater than zero.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf("value must be positive, got %d", value)})
	}
	return v
}

// ValidateRange checks that an integer field lies in [min, max].
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf("value must be between %d and %d, got %d", min, max, value)})
	}
	return v
}

// ValidateFloatRange checks that a float field lies in [min, max].
func (v *Validator) ValidateFloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf("value must be between %.2f and %.2f, got %.2f", min, max, value)})
	}
	return v
}

// ValidatePort checks a TCP port number.
func (v *Validator) ValidatePort(field string, port int) *Validator {
	return v.ValidateRange(field, port, 1, 65535)
}

// ValidateOneOf checks that a string value is among the allowed options.
func (v *Validator) ValidateOneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf("value must be one of %v, got %q", allowed, value)})
	return v
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the accumulated field errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Error combines all field errors into one, or returns nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, e := range v.errors {
		fmt.Fprintf(&b, "\n  - %s: %s", e.Field, e.Message)
	}
	return fmt.Errorf("%s", b.String())
}
