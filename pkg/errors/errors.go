package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the detection pipeline.
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrDecompositionFailed  = errors.New("decomposition failed")
	ErrPipelineFailed       = errors.New("pipeline failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrStorageWriteFailed   = errors.New("storage write failed")
)

// ErrorType categorizes application errors.
type ErrorType string

const (
	ErrorTypeData          ErrorType = "data"
	ErrorTypeDecomposition ErrorType = "decomposition"
	ErrorTypePipeline      ErrorType = "pipeline"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeStorage       ErrorType = "storage"
)

// Error codes used across the pipeline.
const (
	CodeInsufficientData    = "INSUFFICIENT_DATA"
	CodeZeroVariance        = "ZERO_VARIANCE"
	CodeDecompositionFailed = "DECOMPOSITION_FAILED"
	CodeDegenerateWindow    = "DEGENERATE_WINDOW"
	CodeNumericalFailure    = "NUMERICAL_FAILURE"
	CodePipelineFailed      = "PIPELINE_FAILED"
	CodeInvalidConfig       = "INVALID_CONFIG"
	CodeStorageWrite        = "STORAGE_WRITE_FAILED"
)

// AppError is an application error with a type, a stable code and optional
// structured context for per-key reporting.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is / errors.As chains.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on type and code so callers can compare against constructed
// template errors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext attaches a key/value pair to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error.
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

// NewInsufficientDataError marks a series that fails the admission filter:
// fewer than the minimum distinct months, or zero variance.
func NewInsufficientDataError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeData,
		Code:    code,
		Message: message,
		Cause:   ErrInsufficientData,
	}
}

// NewDecompositionError marks a series whose trend/seasonal decomposition
// could not produce valid output.
func NewDecompositionError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeDecomposition,
		Code:    code,
		Message: message,
		Cause:   ErrDecompositionFailed,
	}
}

// NewPipelineError wraps any per-key failure, including numerical ones, for
// uniform handling by the batch driver.
func NewPipelineError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypePipeline,
		Code:    CodePipelineFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError marks an invalid detection configuration.
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Code:    CodeInvalidConfig,
		Message: message,
		Cause:   ErrInvalidConfiguration,
	}
}

// NewStorageError wraps a result sink failure.
func NewStorageError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeStorage,
		Code:    CodeStorageWrite,
		Message: message,
		Cause:   cause,
	}
}

// IsInsufficientData reports whether err stems from the admission filter.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// IsDecompositionFailed reports whether err stems from a failed decomposition.
func IsDecompositionFailed(err error) bool {
	return errors.Is(err, ErrDecompositionFailed)
}
