// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Typed errors (*Error): Use when callers need structured detail via errors.As
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
//
// Provider failures (transient, auth, fatal) are typed in the llm package because they
// carry provider-specific detail; everything shared across packages lives here.
package errors

import (
	"errors"
	"fmt"
)

// Entity lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrPostNotFound indicates a post could not be found.
	ErrPostNotFound = errors.New("post not found")

	// ErrAnalysisNotFound indicates an analysis could not be found.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrMessageNotFound indicates a platform message could not be found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrChannelNotFound indicates a channel could not be found.
	ErrChannelNotFound = errors.New("channel not found")
)

// Client and connection errors.
var (
	// ErrClientNotInitialized indicates a client has not been initialized.
	ErrClientNotInitialized = errors.New("client not initialized")

	// ErrClientDisabled indicates a client or feature is disabled.
	ErrClientDisabled = errors.New("client disabled")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidURL indicates a post URL that no platform parser accepts.
	ErrInvalidURL = errors.New("invalid post url")

	// ErrPlatformUnavailable indicates a recognised platform whose collection is switched off.
	ErrPlatformUnavailable = errors.New("platform is currently unavailable")

	// ErrAnalysisNotActive indicates a state transition on a finished, paused or cancelled analysis.
	ErrAnalysisNotActive = errors.New("analysis is not active")
)

// Storage errors.
var (
	// ErrPersistence marks a storage write failure while saving annotation results.
	// Batches flushed before the failure stay committed.
	ErrPersistence = errors.New("persistence failed")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnexpectedType indicates an unexpected type was encountered.
	ErrUnexpectedType = errors.New("unexpected type")
)

// ConfigurationError reports an unsupported or misconfigured component.
// It is never retried.
type ConfigurationError struct {
	Component string
	Value     string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported %s: %q", e.Component, e.Value)
	}

	return fmt.Sprintf("misconfigured %s %q: %s", e.Component, e.Value, e.Reason)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError

	return errors.As(err, &cfgErr)
}

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is a convenience wrapper around errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
