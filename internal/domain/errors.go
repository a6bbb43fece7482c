package domain

import (
	"context"
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Acquisition errors
	ErrDownloadInProgress     = errors.New("a download is already in progress")
	ErrCancelled              = errors.New("download cancelled")
	ErrIdleTimeout            = errors.New("no data received within idle timeout")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrBodyOverrun            = errors.New("response body exceeds declared content length")
	ErrInsufficientSpace      = errors.New("insufficient disk space")
)

// Error kinds reported to the front end
const (
	KindRedirectLoop = "redirect_loop"
	KindHTTPStatus   = "http_status"
	KindTransport    = "transport"
	KindFilesystem   = "filesystem"
	KindCancelled    = "cancelled"
	KindInProgress   = "in_progress"
	KindUnknown      = "unknown"
)

// RedirectLoopError is returned when a download follows more redirects than allowed.
type RedirectLoopError struct {
	Limit int
	URL   string
}

// Error returns the error message
func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("too many redirects (limit %d) at %s", e.Limit, e.URL)
}

// NewRedirectLoopError creates a new redirect loop error
func NewRedirectLoopError(limit int, url string) *RedirectLoopError {
	return &RedirectLoopError{Limit: limit, URL: url}
}

// IsRedirectLoop returns true if the redirect bound was exceeded
func IsRedirectLoop(err error) bool {
	var re *RedirectLoopError
	return errors.As(err, &re)
}

// HTTPStatusError is returned for a non-success, non-redirect response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

// Error returns the error message
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.StatusCode, e.URL)
}

// NewHTTPStatusError creates a new HTTP status error
func NewHTTPStatusError(code int, url string) *HTTPStatusError {
	return &HTTPStatusError{StatusCode: code, URL: url}
}

// IsHTTPStatus returns true if the error is an HTTP status error
func IsHTTPStatus(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he)
}

// GetStatusCode returns the HTTP status code carried by err, if any
func GetStatusCode(err error) (int, bool) {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	return 0, false
}

// TransportError wraps connection, DNS, socket and URL failures.
type TransportError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *TransportError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return e.Op + ": " + e.Err.Error()
		}
		return e.Op
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transport error"
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransport returns true if the error is a transport error
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// FilesystemError wraps failures creating, writing or renaming the destination.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

// Error returns the error message
func (e *FilesystemError) Error() string {
	msg := "filesystem error"
	if e.Op != "" {
		msg = e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// NewFilesystemError creates a new filesystem error
func NewFilesystemError(op, path string, err error) *FilesystemError {
	return &FilesystemError{Op: op, Path: path, Err: err}
}

// IsFilesystem returns true if the error is a filesystem error
func IsFilesystem(err error) bool {
	var fe *FilesystemError
	return errors.As(err, &fe)
}

// IsCancelled returns true if the download ended because it was cancelled
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Kind classifies err for display on the front end
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsCancelled(err):
		return KindCancelled
	case errors.Is(err, ErrDownloadInProgress):
		return KindInProgress
	case IsRedirectLoop(err):
		return KindRedirectLoop
	case IsHTTPStatus(err):
		return KindHTTPStatus
	case IsFilesystem(err):
		return KindFilesystem
	case IsTransport(err):
		return KindTransport
	default:
		return KindUnknown
	}
}
