// Package api provides the authenticated client for the file server and the
// error types shared by its callers.
package api

import (
	"errors"
	"fmt"
)

// Authentication errors. Both force the client back to the login view.
var (
	// ErrNotAuthenticated is returned when no session token is present.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned when the server rejects the session token (401).
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidCredentials is returned when login is rejected.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrSessionExpired)
}

// UploadError is returned when the server answers an upload with a non-2xx status.
type UploadError struct {
	FileName   string
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upload of %q failed: status %d: %s", e.FileName, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upload of %q failed: status %d", e.FileName, e.StatusCode)
}

// NetworkError is returned when no response was received.
// FileName is set for uploads; Op names the request otherwise.
type NetworkError struct {
	FileName string
	Op       string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.FileName != "" {
		return fmt.Sprintf("upload of %q failed: network error: %v", e.FileName, e.Err)
	}
	return fmt.Sprintf("%s failed: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BatchDeleteError is a request-level failure of a batch delete: no per-name
// outcome is known and nothing may be assumed deleted.
// It is distinct from the per-name Failed list of a successful response.
type BatchDeleteError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *BatchDeleteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("batch delete failed: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("batch delete failed: %v", e.Err)
}

func (e *BatchDeleteError) Unwrap() error { return e.Err }
