package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnsupportedModel = "UNSUPPORTED_MODEL"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeSourceFailed     = "SOURCE_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrUnsupportedModel is matched by every UnsupportedModelError.
var ErrUnsupportedModel = errors.New("unsupported sentiment model")

// UnsupportedModelError reports a sentiment model name that is not registered.
// It is a configuration error, never a data error.
type UnsupportedModelError struct {
	Name      string
	Available []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported sentiment model %q (available: %v)", e.Name, e.Available)
}

// Is lets errors.Is(err, ErrUnsupportedModel) match.
func (e *UnsupportedModelError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PipelineError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PipelineError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PipelineError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsPipelineError classifies any error into a PipelineError. Unsupported
// model errors keep their own code; everything else unknown is internal.
func AsPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, ErrUnsupportedModel) {
		return NewPipelineError(ErrCodeUnsupportedModel, err.Error(), err)
	}
	return NewPipelineError(ErrCodeInternal, err.Error(), err)
}
