package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrClosed is returned when a request is attempted on a released session
var ErrClosed = errors.New("erp session is closed")

// AuthError reports a failed login
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("erp login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("erp login failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the transport error, if any
func (e *AuthError) Unwrap() error {
	return e.Err
}

// LogoutError reports a failed logout
type LogoutError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *LogoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("erp logout failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("erp logout failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the transport error, if any
func (e *LogoutError) Unwrap() error {
	return e.Err
}
