// Package errors provides structured error handling for the Returnless tap
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents rejected requests and invalid input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents rate limit errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents network failures and server-side errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAuthentication represents authentication errors
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypePermission represents permission errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents undecodable or schema-violating payloads
	ErrorTypeData ErrorType = "data"
	// ErrorTypeParse represents unparseable timestamps
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Well-known detail keys.
const (
	DetailStream     = "stream"
	DetailStatusCode = "status_code"
	DetailPath       = "path"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface. The type is printed once for a
// run of directly nested errors of the same type.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.text())
}

func (e *Error) text() string {
	if e.Cause == nil {
		return e.Message
	}
	if inner, ok := e.Cause.(*Error); ok && inner.Type == e.Type {
		return e.Message + ": " + inner.text()
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value, searching the cause chain when the
// outermost error does not carry it.
func (e *Error) Detail(key string) (interface{}, bool) {
	for cur := e; cur != nil; {
		if v, ok := cur.Details[key]; ok {
			return v, true
		}
		var next *Error
		if !errors.As(cur.Cause, &next) {
			break
		}
		cur = next
	}
	return nil, false
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, fmt.Sprintf(format, args...))
	if wrapped.Stack == nil {
		wrapped.Stack = captureStack(2)
	}
	return wrapped
}

// FromHTTPStatus classifies a non-2xx response. 5xx responses are
// connection errors and therefore retryable; every 4xx except 429 is final.
func FromHTTPStatus(statusCode int, body []byte) *Error {
	msg := fmt.Sprintf("unexpected status %d", statusCode)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		msg = fmt.Sprintf("%s: %s", msg, snippet)
	}

	var errType ErrorType
	switch {
	case statusCode == http.StatusUnauthorized:
		errType = ErrorTypeAuthentication
	case statusCode == http.StatusForbidden:
		errType = ErrorTypePermission
	case statusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	case statusCode == http.StatusRequestTimeout:
		errType = ErrorTypeTimeout
	case statusCode >= 500:
		errType = ErrorTypeConnection
	default:
		errType = ErrorTypeValidation
	}

	e := &Error{
		Type:    errType,
		Message: msg,
		Stack:   captureStack(2),
	}
	return e.WithDetail(DetailStatusCode, statusCode)
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// GetType returns the type of the outermost structured error, or
// ErrorTypeInternal for foreign errors.
func GetType(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
