package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool                       `json:"is_valid"`
	Errors  map[string]ValidationError `json:"errors,omitempty"`
}

// Validator wraps go-playground/validator and reports fields by their json names
type Validator struct {
	validate *validator.Validate
	errors   map[string]ValidationError
}

var (
	sharedValidate     *validator.Validate
	sharedValidateOnce sync.Once
)

// engine returns the process-wide validator; it caches struct metadata
func engine() *validator.Validate {
	sharedValidateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		sharedValidate = v
	})
	return sharedValidate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		validate: engine(),
		errors:   make(map[string]ValidationError),
	}
}

// ValidateStruct validates a struct using its validate tags
func (v *Validator) ValidateStruct(s interface{}) *ValidationResult {
	v.errors = make(map[string]ValidationError)

	err := v.validate.Struct(s)
	if err == nil {
		return v.getResult()
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		v.addError("_root", "Value must be a struct", "")
		return v.getResult()
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			v.addError(fieldPath(fe), validationMessage(fe), fmt.Sprintf("%v", fe.Value()))
		}
	}
	return v.getResult()
}

// validateField validates a single value against a tag string such as "required,min=1"
func (v *Validator) validateField(fieldName string, value interface{}, rules string) {
	err := v.validate.Var(value, rules)
	if err == nil {
		return
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		v.addError(fieldName, validationMessage(fieldErrors[0]), fmt.Sprintf("%v", value))
		return
	}
	v.addError(fieldName, err.Error(), fmt.Sprintf("%v", value))
}

// fieldPath drops the top-level struct name from the namespace:
// "CreateTestCaseRequest.steps[0]" becomes "steps[0]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

// validationMessage returns a user-friendly validation error message
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Value must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s", fe.Param())
	case "email":
		return "Must be a valid email address"
	case "url":
		return "Must be a valid URL"
	case "uuid", "uuid4":
		return "Must be a valid UUID"
	case "numeric":
		return "Must be numeric"
	case "number":
		return "Must be a whole number"
	default:
		return "Invalid value"
	}
}

// addError adds a validation error
func (v *Validator) addError(field, message, value string) {
	v.errors[field] = ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// getResult returns the validation result
func (v *Validator) getResult() *ValidationResult {
	return &ValidationResult{
		IsValid: len(v.errors) == 0,
		Errors:  v.errors,
	}
}

// Details flattens the result into field -> message
func (r *ValidationResult) Details() map[string]string {
	details := make(map[string]string, len(r.Errors))
	for field, validationError := range r.Errors {
		details[field] = validationError.Message
	}
	return details
}

// ValidateJSON validates JSON request body against a struct
func ValidateJSON(c *fiber.Ctx, target interface{}) *ValidationResult {
	if err := c.BodyParser(target); err != nil {
		validator := NewValidator()
		validator.addError("_body", "Invalid JSON format", "")
		return validator.getResult()
	}

	validator := NewValidator()
	return validator.ValidateStruct(target)
}

// ValidateQuery validates query parameters
func ValidateQuery(c *fiber.Ctx, rules map[string]string) *ValidationResult {
	validator := NewValidator()

	for field, rule := range rules {
		validator.validateField(field, c.Query(field), rule)
	}

	return validator.getResult()
}

// ValidateParams validates URL parameters
func ValidateParams(c *fiber.Ctx, rules map[string]string) *ValidationResult {
	validator := NewValidator()

	for field, rule := range rules {
		validator.validateField(field, c.Params(field), rule)
	}

	return validator.getResult()
}

// IsValidJSON checks if a string is valid JSON
func IsValidJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// ValidateAndSanitizeInput validates and sanitizes input string
func ValidateAndSanitizeInput(input string, maxLength int) (string, error) {
	sanitized := SanitizeString(input)

	if len(sanitized) > maxLength {
		return "", fmt.Errorf("input exceeds maximum length of %d characters", maxLength)
	}

	return sanitized, nil
}

// JSONMarshal is a custom JSON marshal function for Fiber
func JSONMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// JSONUnmarshal is a custom JSON unmarshal function for Fiber
func JSONUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// FieldErrors describes every invalid field of a struct
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateStruct is a convenience function that validates a struct and returns
// a FieldErrors value when it is invalid
func ValidateStruct(s interface{}) error {
	result := NewValidator().ValidateStruct(s)
	if !result.IsValid {
		return FieldErrors(result.Details())
	}
	return nil
}
