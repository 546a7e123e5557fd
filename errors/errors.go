// Package errors provides standardized error handling for ringdev components.
// It includes error classification, the endpoint's error surface as sentinel
// variables, and helpers for consistent error wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/ringdev/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried by the caller
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Endpoint error surface
var (
	// ErrOversizedRequest is returned when a write payload exceeds the write limit.
	// Nothing is enqueued.
	ErrOversizedRequest = errors.New("request larger than buffer")
	// ErrResourceBusy is returned when the session limit has been reached.
	ErrResourceBusy = errors.New("resource busy")
	// ErrPermissionDenied is returned for an invalid open mode or an operation
	// the session's mode does not allow.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInterrupted is returned when a blocking wait or lock acquisition is cancelled.
	// No bytes were transferred.
	ErrInterrupted = errors.New("interrupted")
	// ErrInvalidArgument is returned for unknown control commands and bad arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClosed is returned for operations on a closed session or endpoint.
	ErrClosed = errors.New("endpoint closed")
)

// ErrInvalidConfig is returned when endpoint or workload configuration is
// rejected.
var ErrInvalidConfig = errors.New("invalid configuration")

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and may be retried by the caller
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrResourceBusy) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "temporary", "unavailable", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrOversizedRequest) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidArgument)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

// newClassified creates a new classified error.
// Use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Interrupted builds the error returned when ctx aborted a blocking call.
// The result matches both ErrInterrupted and the context's own error.
func Interrupted(ctx context.Context, component, method, action string) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return WrapTransient(fmt.Errorf("%w: %w", ErrInterrupted, cause), component, method, action)
}

// RetryConfig describes which failures are worth another attempt and how
// long to back off between them.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// BusyRetryConfig waits out a saturated session limit: many short retries of
// ErrResourceBusy, since sessions are usually released quickly.
func BusyRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      49,
		InitialDelay:    5 * time.Millisecond,
		MaxDelay:        250 * time.Millisecond,
		BackoffFactor:   1.5,
		RetryableErrors: []error{ErrResourceBusy},
	}
}

// ShouldRetry reports whether err from the given zero-based retry may be
// retried. Only transient errors qualify; a non-empty RetryableErrors narrows
// that further.
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) > 0 {
		for _, retryableErr := range rc.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	return true
}

// ToRetryConfig converts the RetryConfig to a retry.Config. MaxRetries counts
// additional attempts, so one is added for the first try. Errors that
// ShouldRetry rejects are reported as non-retryable.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
		Retryable: func(err error, attempt int) bool {
			return rc.ShouldRetry(err, attempt-1)
		},
	}
}
