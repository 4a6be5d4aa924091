package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAPI        ErrorType = "api"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeUnknownField     = "ERR_UNKNOWN_FIELD"
	ErrCodeAPIStatus        = "ERR_API_STATUS"
	ErrCodeNetwork          = "ERR_NETWORK"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInFlight         = "ERR_SUBMISSION_IN_FLIGHT"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// ContactError is a structured error type with context.
type ContactError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *ContactError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ContactError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ContactError) Is(target error) bool {
	var t *ContactError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ContactError) WithContext(key string, value interface{}) *ContactError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ContactError {
	return &ContactError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewAPIError creates an error for a response whose status is not an accepted success.
func NewAPIError(statusCode int) *ContactError {
	return (&ContactError{
		Type:        ErrorTypeAPI,
		Code:        ErrCodeAPIStatus,
		Message:     fmt.Sprintf("endpoint responded with status %d", statusCode),
		Recoverable: false,
	}).WithContext("status_code", statusCode)
}

// NewNetworkError creates an error for a request that produced no response.
func NewNetworkError(cause error) *ContactError {
	return &ContactError{
		Type:        ErrorTypeNetwork,
		Code:        ErrCodeNetwork,
		Message:     "request did not complete",
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *ContactError {
	return &ContactError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ContactError {
	return &ContactError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// ErrSubmissionInFlight is returned when a submit is attempted while another
// one is still waiting for its response.
var ErrSubmissionInFlight = &ContactError{
	Type:        ErrorTypeValidation,
	Code:        ErrCodeInFlight,
	Message:     "a submission is already in flight",
	Recoverable: true,
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ce *ContactError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	var vec *ValidationErrorCollection
	return errors.As(err, &vec)
}

func isType(err error, typ ErrorType) bool {
	var ce *ContactError
	if errors.As(err, &ce) {
		return ce.Type == typ
	}

	return false
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	var vec *ValidationErrorCollection
	if errors.As(err, &vec) {
		return true
	}

	return isType(err, ErrorTypeValidation)
}

// IsAPIError reports whether err came from a non-success response.
func IsAPIError(err error) bool {
	return isType(err, ErrorTypeAPI)
}

// IsNetworkError reports whether err came from a transport failure.
func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

// IsInFlight reports whether err is ErrSubmissionInFlight.
func IsInFlight(err error) bool {
	return errors.Is(err, ErrSubmissionInFlight)
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	return isType(err, ErrorTypeConfig)
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var ce *ContactError
	if errors.As(err, &ce) && ce.Type == ErrorTypeAPI {
		if code, ok := ce.Context["status_code"].(int); ok {
			return code
		}
	}

	return 0
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level appropriate to its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var vec *ValidationErrorCollection
	if errors.As(err, &vec) {
		h.logger.Warn(ctx, err, "Validation failed", "fields", vec.Fields())
		return
	}

	var ce *ContactError
	if !errors.As(err, &ce) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch ce.Type {
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred", "code", ce.Code)
	case ErrorTypeAPI:
		h.logger.Warn(ctx, err, "Endpoint rejected submission",
			"code", ce.Code,
			"status_code", ce.Context["status_code"])
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", ce.Type,
			"code", ce.Code)
	}
}

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(field string, value interface{}, message string) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(vec.Fields(), ", "))
}

// Add adds a validation error to the collection.
func (vec *ValidationErrorCollection) Add(err ValidationError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Add(NewFieldValidationError(field, value, message))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// Fields returns the sorted names of the failing fields.
func (vec *ValidationErrorCollection) Fields() []string {
	fields := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		fields = append(fields, err.Field())
	}
	sort.Strings(fields)

	return fields
}

// Messages returns field name to message for every collected error.
func (vec *ValidationErrorCollection) Messages() map[string]string {
	out := make(map[string]string, len(vec.Errors))
	for _, err := range vec.Errors {
		if fve, ok := err.(*FieldValidationError); ok {
			out[err.Field()] = fve.ErrorMessage
			continue
		}
		out[err.Field()] = err.Error()
	}

	return out
}

// ToContactError converts the validation collection to a ContactError.
func (vec *ValidationErrorCollection) ToContactError() *ContactError {
	if !vec.HasErrors() {
		return nil
	}

	ce := NewValidationError(ErrCodeValidationFailed, vec.Error())
	for field, msg := range vec.Messages() {
		ce.WithContext(field, msg)
	}

	return ce
}
