// Package errors provides custom error types for the datasync system.
// These errors enable programmatic error checking and keep the boundary
// between correctness-critical failures (cache operations) and best-effort
// failures (user callbacks, diagnostics) explicit.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the datasync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed indicates an operation against a closed channel or client
	ErrClosed = errors.New("closed")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrAlreadyStarted indicates a sync session that is already running
	ErrAlreadyStarted = errors.New("already started")
)

// SubscriptionError represents a failure to establish or release a
// subscription on the event channel. Surfaced at subscribe time, never
// swallowed.
type SubscriptionError struct {
	Channel string
	Message string
	Err     error
}

// Error implements the error interface
func (e *SubscriptionError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("subscription error on channel %s: %s", e.Channel, e.Message)
	}
	return fmt.Sprintf("subscription error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// NewSubscriptionError creates a new SubscriptionError
func NewSubscriptionError(channel, message string, err error) *SubscriptionError {
	return &SubscriptionError{Channel: channel, Message: message, Err: err}
}

// CacheError represents a failure of the external query cache itself.
// These are never masked locally because masking them would produce
// silent inconsistency.
type CacheError struct {
	Operation string // "invalidate", "set", "remove"
	Key       []string
	Err       error
}

// Error implements the error interface
func (e *CacheError) Error() string {
	if len(e.Key) > 0 {
		return fmt.Sprintf("cache %s failed for key %v: %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s failed: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError
func NewCacheError(operation string, key []string, err error) *CacheError {
	return &CacheError{Operation: operation, Key: key, Err: err}
}

// CallbackError captures a fault raised by a caller-supplied callback.
// Callbacks are best-effort: the error is reported and processing
// continues with cache invalidation unaffected.
type CallbackError struct {
	Hook    string // which callback faulted, e.g. "onDataChange"
	Entity  string
	Message string
}

// Error implements the error interface
func (e *CallbackError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("callback %s failed for entity %s: %s", e.Hook, e.Entity, e.Message)
	}
	return fmt.Sprintf("callback %s failed: %s", e.Hook, e.Message)
}

// NewCallbackError creates a new CallbackError
func NewCallbackError(hook, entity, message string) *CallbackError {
	return &CallbackError{Hook: hook, Entity: entity, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsClosed checks if an error indicates a closed channel or client
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsCacheError checks if an error originated in the external cache
func IsCacheError(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce)
}

// Helper wrapping functions for common patterns

// WrapCache wraps an error as a CacheError
func WrapCache(operation string, key []string, err error) error {
	if err == nil {
		return nil
	}
	return NewCacheError(operation, key, err)
}

// WrapSubscription wraps an error as a SubscriptionError
func WrapSubscription(channel string, err error) error {
	if err == nil {
		return nil
	}
	return NewSubscriptionError(channel, err.Error(), err)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}
