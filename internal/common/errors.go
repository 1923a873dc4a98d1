package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError.
const (
	CodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	CodeStrategyDetection = "STRATEGY_DETECTION_ERROR"
	CodeFieldParse        = "FIELD_PARSE_ERROR"
	CodeConfig            = "CONFIG_ERROR"
	CodeTemplateStore     = "TEMPLATE_STORE_ERROR"
	CodeNormalize         = "NORMALIZE_ERROR"
)

// Common application errors
var (
	ErrEngineUnavailable = errors.New("text extraction engine unavailable")
	ErrInsufficientText  = errors.New("insufficient text extracted")
	ErrStrategyDetection = errors.New("strategy detection failed")
	ErrFieldParse        = errors.New("field parse failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// EngineUnavailableError reports that both primary and fallback backends failed.
// primary and fallback may be nil when the corresponding backend was not tried.
func EngineUnavailableError(primary, fallback error) error {
	return NewAppError(CodeEngineUnavailable, "all text extraction backends failed",
		errors.Join(ErrEngineUnavailable, primary, fallback))
}

// FieldParseError reports a candidate value that failed numeric parsing.
func FieldParseError(field, value string, cause error) error {
	return NewAppError(CodeFieldParse, fmt.Sprintf("%s %q", field, value), errors.Join(ErrFieldParse, cause))
}

// StrategyDetectionError wraps a failure raised by one strategy's self-assessment.
func StrategyDetectionError(strategy string, cause error) error {
	return NewAppError(CodeStrategyDetection, strategy, errors.Join(ErrStrategyDetection, cause))
}

// IsCode reports whether err (or anything it wraps) is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// TemplateStoreError wraps a failure of the template persistence backend.
func TemplateStoreError(op string, cause error) error {
	return NewAppError(CodeTemplateStore, op, errors.Join(ErrStorage, cause))
}
