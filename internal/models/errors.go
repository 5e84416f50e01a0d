package models

import (
	"errors"
	"fmt"
	"strings"
)

// ScraperError is the generic network or parse failure raised by fetchers and
// strategies. Retryable reports whether the retry policy may re-attempt it.
type ScraperError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *ScraperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}

// NewScraperError wraps a cause into a ScraperError
func NewScraperError(message string, retryable bool, cause error) *ScraperError {
	return &ScraperError{Message: message, Retryable: retryable, Cause: cause}
}

// RedirectError is raised when redirects are disabled and a 3xx response
// carries a Location header.
type RedirectError struct {
	OriginalURL string
	RedirectURL string
	StatusCode  int
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect not followed: %s -> %s (status %d)", e.OriginalURL, e.RedirectURL, e.StatusCode)
}

// CancellationError marks cooperative cancellation. It is never retried and
// never reported as a failure.
type CancellationError struct {
	Cause error
}

func (e *CancellationError) Error() string {
	return "operation cancelled"
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// IsCancellation reports whether err is (or wraps) a cancellation
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancellationError
	return errors.As(err, &ce)
}

// ToolError marks invalid input to a facade operation
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// NewToolError builds a ToolError with a formatted message
func NewToolError(format string, args ...interface{}) *ToolError {
	return &ToolError{Message: fmt.Sprintf(format, args...)}
}

// StoreError marks a database or migration failure
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// VersionNotFoundError is raised when version resolution finds no candidate.
// Available carries the versions that do exist for the library so callers can
// surface them.
type VersionNotFoundError struct {
	Library        string
	Requested      string
	Available      []string
	HasUnversioned bool
}

func (e *VersionNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no indexed versions found for library %s", e.Library)
	}
	return fmt.Sprintf("version %s not found for library %s (available: %s)",
		e.Requested, e.Library, strings.Join(e.Available, ", "))
}
