// Package errors provides a structured error system for the UV cache with
// error codes, categories, and context.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cache operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Connection errors
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"

	// Storage errors
	ErrCodeEntryNotFound    ErrorCode = "ENTRY_NOT_FOUND"
	ErrCodeStorageRead      ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite     ErrorCode = "STORAGE_WRITE"
	ErrCodeIndexCorrupt     ErrorCode = "INDEX_CORRUPT"
	ErrCodeEntryTooLarge    ErrorCode = "ENTRY_TOO_LARGE"
	ErrCodeChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// Validity errors; treated as cache misses, never surfaced
	ErrCodeVersionMismatch ErrorCode = "VERSION_MISMATCH"
	ErrCodeHashMismatch    ErrorCode = "HASH_MISMATCH"
	ErrCodeEntryExpired    ErrorCode = "ENTRY_EXPIRED"

	// Capacity errors; resolved by eviction
	ErrCodeCacheFull ErrorCode = "CACHE_FULL"

	// Operation errors
	ErrCodeOperationTimeout ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeRetryExhausted   ErrorCode = "RETRY_EXHAUSTED"

	// State errors
	ErrCodeTierClosed ErrorCode = "TIER_CLOSED"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryStorage       ErrorCategory = "storage"
	CategoryValidity      ErrorCategory = "validity"
	CategoryCapacity      ErrorCategory = "capacity"
	CategoryOperation     ErrorCategory = "operation"
	CategoryState         ErrorCategory = "state"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError represents a structured error with context and metadata.
type CacheError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
	Key       string `json:"key,omitempty"`

	// Error handling hints
	Retryable bool `json:"retryable"`

	// Debug information
	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if cacheErr, ok := target.(*CacheError); ok {
		return e.Code == cacheErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *CacheError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("Key=%s", e.Key))
	}

	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}

	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("CacheError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *CacheError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new cache error with default values.
func NewError(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Wrap creates a new cache error around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *CacheError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeConfigValidation:
		return CategoryConfiguration
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout:
		return CategoryConnection
	case ErrCodeEntryNotFound, ErrCodeStorageRead, ErrCodeStorageWrite,
		ErrCodeIndexCorrupt, ErrCodeEntryTooLarge, ErrCodeChecksumMismatch:
		return CategoryStorage
	case ErrCodeVersionMismatch, ErrCodeHashMismatch, ErrCodeEntryExpired:
		return CategoryValidity
	case ErrCodeCacheFull:
		return CategoryCapacity
	case ErrCodeOperationTimeout, ErrCodeRetryExhausted:
		return CategoryOperation
	case ErrCodeTierClosed:
		return CategoryState
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeConnectionFailed:  true,
		ErrCodeConnectionTimeout: true,
		ErrCodeOperationTimeout:  true,
		ErrCodeStorageRead:       true,
		ErrCodeStorageWrite:      true,
		ErrCodeInternal:          true,
	}
	return retryableCodes[code]
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:]) // +2 to skip this function and the caller
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") { // Skip frames from this file
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *CacheError) WithContext(key, value string) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *CacheError) WithDetail(key string, value interface{}) *CacheError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithKey sets the cache key the error relates to
func (e *CacheError) WithKey(key string) *CacheError {
	e.Key = key
	return e
}

// WithCause sets the underlying cause
func (e *CacheError) WithCause(cause error) *CacheError {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable hint
func (e *CacheError) WithRetryable(retryable bool) *CacheError {
	e.Retryable = retryable
	return e
}

// WithStack captures the current stack trace
func (e *CacheError) WithStack() *CacheError {
	e.Stack = CaptureStack(2)
	return e
}

// CodeOf extracts the error code from an error chain. Non-cache errors
// report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		return cacheErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether the error chain denotes a missing entry.
func IsNotFound(err error) bool {
	var cacheErr *CacheError
	return errors.As(err, &cacheErr) && cacheErr.Code == ErrCodeEntryNotFound
}

// IsValidity reports whether the error chain denotes a validity failure
// (version mismatch, hash mismatch, or expiry).
func IsValidity(err error) bool {
	var cacheErr *CacheError
	return errors.As(err, &cacheErr) && cacheErr.Category == CategoryValidity
}

// IsRetryable reports whether the error chain carries a retryable cache error.
func IsRetryable(err error) bool {
	var cacheErr *CacheError
	return errors.As(err, &cacheErr) && cacheErr.Retryable
}
