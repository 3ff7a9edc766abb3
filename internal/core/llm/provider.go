package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ProviderName identifies an LLM provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOllama ProviderName = "ollama"
	ProviderGemini ProviderName = "gemini"
	ProviderDuckAI ProviderName = "duckai"
	ProviderMock   ProviderName = "mock"
)

// Provider sends one system prompt and one user payload to a model and
// returns the raw completion text. Failures are reported as *ProviderError.
type Provider interface {
	Name() ProviderName
	Complete(ctx context.Context, systemPrompt, userPayload string) (string, error)
	Close() error
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// KindTransient covers network failures, timeouts, rate limits and 5xx.
	// The whole analysis may be retried later.
	KindTransient ErrorKind = "transient"
	// KindAuth means the provider rejected the credentials or session.
	KindAuth ErrorKind = "auth"
	// KindFatal covers everything that will not succeed on retry.
	KindFatal ErrorKind = "fatal"
)

// ProviderError is returned by every adapter call that fails.
type ProviderError struct {
	Provider   ProviderName
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient provider failure.
func IsTransient(err error) bool {
	return kindOf(err) == KindTransient
}

// IsAuth reports whether err is an authorization failure.
func IsAuth(err error) bool {
	return kindOf(err) == KindAuth
}

// IsFatal reports whether err is a non-retryable provider failure.
func IsFatal(err error) bool {
	return kindOf(err) == KindFatal
}

func kindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	return ""
}

// kindForStatus maps an HTTP status code onto the error taxonomy.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return KindTransient
	default:
		return KindFatal
	}
}

// contextKind classifies context errors: deadlines are transient, cancellation is fatal.
func contextKind(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient, true
	case errors.Is(err, context.Canceled):
		return KindFatal, true
	default:
		return "", false
	}
}
