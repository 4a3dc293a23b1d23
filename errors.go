package zoun

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeBadRequest ErrorType = "bad_request"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes
const (
	ErrCodeModelNotFound       = "MODEL_NOT_FOUND"
	ErrCodeRecordNotFound      = "RECORD_NOT_FOUND"
	ErrCodeFieldNotFound       = "FIELD_NOT_FOUND"
	ErrCodeFieldNotBinary      = "FIELD_NOT_BINARY"
	ErrCodeConversionFailed    = "CONVERSION_FAILED"
	ErrCodeBindingFailed       = "BINDING_FAILED"
	ErrCodeUnsupportedIDType   = "UNSUPPORTED_ID_TYPE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeDuplicateModel      = "DUPLICATE_MODEL"
	ErrCodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeInvalidRegistration = "INVALID_REGISTRATION"
)

// GenericErrorMessage is what callers see in place of internal error details.
const GenericErrorMessage = "An unexpected error occurred."

// ZounError represents every error surfaced by the admin engine
type ZounError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Model   string         `json:"model,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ZounError) Error() string {
	if e.Model != "" && e.Field != "" {
		return fmt.Sprintf("[%s:%s] %s.%s: %s", e.Type, e.Code, e.Model, e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Model != "" {
		return fmt.Sprintf("[%s:%s] model %s: %s", e.Type, e.Code, e.Model, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *ZounError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a ZounError
func (e *ZounError) WithDetails(details map[string]any) *ZounError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to a ZounError
func (e *ZounError) WithDetail(key string, value any) *ZounError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to a ZounError
func (e *ZounError) WithCause(cause error) *ZounError {
	e.Cause = cause
	return e
}

// WithModel adds model context to a ZounError
func (e *ZounError) WithModel(model string) *ZounError {
	e.Model = model
	return e
}

// WithField adds field context to a ZounError
func (e *ZounError) WithField(field string) *ZounError {
	e.Field = field
	return e
}

// ============================================================================
// ZounError Constructors
// ============================================================================

// NewZounError creates a new ZounError
func NewZounError(errorType ErrorType, code, message string) *ZounError {
	return &ZounError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewModelNotFoundError reports an unknown model name
func NewModelNotFoundError(model string) *ZounError {
	return &ZounError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeModelNotFound,
		Message: "Model not found: " + model,
		Model:   model,
	}
}

// NewRecordNotFoundError reports a valid model with no record under the identifier
func NewRecordNotFoundError(model string, id any) *ZounError {
	return &ZounError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeRecordNotFound,
		Message: fmt.Sprintf("Entity not found: %v", id),
		Model:   model,
		Details: map[string]any{"id": fmt.Sprint(id)},
	}
}

// NewFieldNotFoundError reports a lookup on a field the model does not declare
func NewFieldNotFoundError(model, field string) *ZounError {
	return &ZounError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeFieldNotFound,
		Message: "Field not found: " + field,
		Model:   model,
		Field:   field,
	}
}

// NewConversionError reports text that could not be parsed into the target type
func NewConversionError(text string, target reflect.Type, cause error) *ZounError {
	typeName := "<nil>"
	if target != nil {
		typeName = target.String()
	}
	return &ZounError{
		Type:    ErrorTypeBadRequest,
		Code:    ErrCodeConversionFailed,
		Message: fmt.Sprintf("Cannot convert value '%s' to type %s", text, typeName),
		Details: map[string]any{"value": text, "targetType": typeName},
		Cause:   cause,
	}
}

// NewBindingError wraps a failure while populating one field
func NewBindingError(field string, cause error) *ZounError {
	msg := fmt.Sprintf("Failed to bind field '%s'", field)
	if cause != nil && !IsInternalError(cause) {
		msg = fmt.Sprintf("%s: %s", msg, PublicMessage(cause))
	}
	return &ZounError{
		Type:    ErrorTypeBadRequest,
		Code:    ErrCodeBindingFailed,
		Message: msg,
		Field:   field,
		Cause:   cause,
	}
}

// NewUnsupportedIdentifierTypeError reports an identifier type outside the supported set
func NewUnsupportedIdentifierTypeError(idType reflect.Type) *ZounError {
	typeName := "<nil>"
	if idType != nil {
		typeName = idType.String()
	}
	return &ZounError{
		Type:    ErrorTypeBadRequest,
		Code:    ErrCodeUnsupportedIDType,
		Message: "Unsupported ID type: " + typeName,
		Details: map[string]any{"idType": typeName},
	}
}

// NewValidationError reports constraint violations on a bound record
func NewValidationError(field, message string) *ZounError {
	return &ZounError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
	}
}

// NewDuplicateModelError reports a model name registered twice under strict naming
func NewDuplicateModelError(model string) *ZounError {
	return &ZounError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeDuplicateModel,
		Message: "model registered more than once: " + model,
		Model:   model,
	}
}

// NewStorageUnavailableError reports a storage handle that is refusing calls
func NewStorageUnavailableError(model string) *ZounError {
	return &ZounError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeStorageUnavailable,
		Message: "storage temporarily unavailable",
		Model:   model,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *ZounError {
	return &ZounError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ============================================================================
// Error checking utilities
// ============================================================================

// AsZounError returns the first ZounError in the chain, or wraps err as an internal error.
func AsZounError(err error) *ZounError {
	if err == nil {
		return nil
	}
	var ze *ZounError
	if errors.As(err, &ze) {
		return ze
	}
	return NewInternalError(err.Error(), err)
}

// IsNotFound checks if an error maps to a not-found result
func IsNotFound(err error) bool {
	var ze *ZounError
	return errors.As(err, &ze) && ze.Type == ErrorTypeNotFound
}

// IsBadRequest checks if an error maps to a bad-request result
func IsBadRequest(err error) bool {
	var ze *ZounError
	return errors.As(err, &ze) && (ze.Type == ErrorTypeBadRequest || ze.Type == ErrorTypeValidation)
}

// IsInternalError checks if an error is unanticipated
func IsInternalError(err error) bool {
	if err == nil {
		return false
	}
	var ze *ZounError
	if !errors.As(err, &ze) {
		return true
	}
	return ze.Type == ErrorTypeInternal
}

// HasCode checks if an error carries the given code
func HasCode(err error, code string) bool {
	var ze *ZounError
	return errors.As(err, &ze) && ze.Code == code
}

// HTTPStatus maps an error to the status code a presentation layer should render.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ze *ZounError
	if !errors.As(err, &ze) {
		return http.StatusInternalServerError
	}
	switch ze.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBadRequest, ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	default:
		if ze.Code == ErrCodeStorageUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to callers; internal details are masked.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsInternalError(err) {
		return GenericErrorMessage
	}
	var ze *ZounError
	errors.As(err, &ze)
	return ze.Message
}
