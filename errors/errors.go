// Package errors provides standardized error handling for the sensor adapter.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the engine and transports.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents per-message or per-send errors that must not
	// unwind past a single envelope or tick (transport failures, decode noise)
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input: schema-noncompliant
	// messages, unknown message kinds, unknown party identities
	ErrorInvalid
	// ErrorFatal represents construction-time invariant violations; the
	// adapter refuses to start rather than run in an undefined state
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

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("adapter already started")
	ErrNotStarted     = errors.New("adapter not started")

	// Message errors
	ErrUnknownKind      = errors.New("unknown message kind")
	ErrDecodeFailed     = errors.New("envelope decode failed")
	ErrValidationFailed = errors.New("message validation failed")

	// Party and session errors
	ErrUnknownParty  = errors.New("unknown party identity")
	ErrNoSubscribers = errors.New("no subscribed sessions")

	// Transport errors
	ErrSendFailed   = errors.New("transport send failed")
	ErrHandleClosed = errors.New("transport handle closed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification and the
// component/operation where it originated.
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
		return fmt.Sprintf("%s.%s: %s: %v", ce.Component, ce.Operation, ce.Message, ce.Err)
	}
	return fmt.Sprintf("%s.%s: %v", ce.Component, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is per-message recoverable
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}
	return errors.Is(err, ErrSendFailed) || errors.Is(err, ErrHandleClosed)
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
	return errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrDecodeFailed) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrUnknownParty)
}

// IsFatal checks if an error must stop adapter construction
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

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
func WrapTransient(err error, component, method, message string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorTransient, err, component, method, message)
}

// WrapInvalid wraps an error as invalid input with context
func WrapInvalid(err error, component, method, message string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorInvalid, err, component, method, message)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, message string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorFatal, err, component, method, message)
}
