// Package errors provides structured error handling for the application
// Following enterprise patterns for error management and observability
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

// Common error codes following RESTful API conventions
const (
	// Client errors (4xx)
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeDatabaseError      ErrorCode = "DATABASE_ERROR"

	// Pantry errors
	CodeStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"
	CodeIngredientNotTracked ErrorCode = "INGREDIENT_NOT_TRACKED"
	CodeConversionFailed     ErrorCode = "CONVERSION_FAILED"
	CodePantryEntryNotFound  ErrorCode = "PANTRY_ENTRY_NOT_FOUND"
)

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeIngredientNotTracked, CodePantryEntryNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeConversionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StackTrace: getStackTrace(),
	}
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, message, "")
}

// NewValidationError creates a validation error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationFailed, "Validation failed", details)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "Authentication required"
	}
	return NewAppError(CodeUnauthorized, message, "")
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppError(
		CodeDatabaseError,
		"Database operation failed",
		fmt.Sprintf("Failed to %s", operation),
	).WithCause(cause)
}

// Pantry specific errors

// NewStoreUnavailableError reports that the pantry store cannot be reached
func NewStoreUnavailableError(operation string, cause error) *AppError {
	return NewAppError(
		CodeStoreUnavailable,
		"Pantry store unavailable",
		fmt.Sprintf("Failed to %s", operation),
	).WithCause(cause)
}

// NewPantryEntryNotFoundError creates a pantry entry not found error
func NewPantryEntryNotFoundError(ingredientID string) *AppError {
	return NewAppError(
		CodePantryEntryNotFound,
		"Pantry entry not found",
		fmt.Sprintf("No pantry entry for ingredient %s", ingredientID),
	).WithMetadata("ingredient_id", ingredientID)
}

// NewIngredientNotTrackedError creates an ingredient not tracked error
func NewIngredientNotTrackedError(name string) *AppError {
	return NewAppError(
		CodeIngredientNotTracked,
		"Ingredient not tracked",
		fmt.Sprintf("Ingredient %q is not in the pantry", name),
	).WithMetadata("ingredient", name)
}

// NewConversionFailedError creates a unit conversion error
func NewConversionFailedError(from, to string, cause error) *AppError {
	return NewAppError(
		CodeConversionFailed,
		"Unit conversion failed",
		fmt.Sprintf("Could not convert %s to %s", from, to),
	).WithCause(cause)
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// getStackTrace captures the current stack trace
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "pkg/errors/errors.go") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Tag     string      `json:"tag"`
	Message string      `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}

	return strings.Join(messages, "; ")
}

// NewValidationErrors creates validation errors from validator errors
func NewValidationErrors(errors []ValidationError) *AppError {
	validationErrs := ValidationErrors(errors)

	return NewAppError(
		CodeValidationFailed,
		"Validation failed",
		validationErrs.Error(),
	).WithMetadata("validation_errors", validationErrs)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
