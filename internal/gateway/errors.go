package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyBody is the cause of a ModificationError for a write acknowledged without an entity
var ErrEmptyBody = errors.New("empty response body")

// FetchError reports a read that failed after a session was established
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("erp fetch %s failed: %s: %v", e.URL, e.Message, e.Err)
}

// Unwrap returns the underlying cause
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ModificationError reports a failed create or update
type ModificationError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface
func (e *ModificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("erp %s %s failed with status %d: %s: %v", e.Method, e.URL, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("erp %s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause
func (e *ModificationError) Unwrap() error {
	return e.Err
}

// CountError reports a failed count
type CountError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *CountError) Error() string {
	return fmt.Sprintf("erp count %s failed: %s: %v", e.URL, e.Message, e.Err)
}

// Unwrap returns the underlying cause
func (e *CountError) Unwrap() error {
	return e.Err
}
