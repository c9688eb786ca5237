package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldError is a single failed check on one field.
type FieldError struct {
	Field   string `json:"field"`
	Value   any    `json:"-"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every FieldError found in one pass.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return joinMessages(e.Errors)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Messages returns one display string per field error.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe.Error()
	}
	return out
}

// Validator collects field errors instead of stopping at the first one.
type Validator struct {
	errors []FieldError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Add records a failure found outside the rule helpers.
func (v *Validator) Add(fieldName string, value any, message string) *Validator {
	v.errors = append(v.errors, FieldError{Field: fieldName, Value: value, Message: message})
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Err returns nil or a *ValidationError holding every collected failure.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	errs := make([]FieldError, len(v.errors))
	copy(errs, v.errors)
	return &ValidationError{Errors: errs}
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	return joinMessages(v.errors)
}

func joinMessages(errs []FieldError) string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value any) *FieldError

// Required - Common validation rules
func Required(fieldName string, value any) *FieldError {
	if value == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case []byte:
		if len(v) == 0 {
			return &FieldError{Field: fieldName, Message: "is required"}
		}
	}
	return nil
}

// MaxLength limits string values to max runes.
func MaxLength(max int) ValidationRule {
	return func(fieldName string, value any) *FieldError {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(str) > max {
			return &FieldError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be at most %d characters", max),
			}
		}
		return nil
	}
}

// OneOf accepts only the listed string values.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value any) *FieldError {
		str, _ := value.(string)
		for _, a := range allowed {
			if str == a {
				return nil
			}
		}
		return &FieldError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
		}
	}
}

// Positive accepts numbers greater than zero.
func Positive(fieldName string, value any) *FieldError {
	var ok bool
	switch v := value.(type) {
	case int:
		ok = v > 0
	case int32:
		ok = v > 0
	case int64:
		ok = v > 0
	case float32:
		ok = v > 0
	case float64:
		ok = v > 0
	}
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be greater than zero"}
	}
	return nil
}
