// Package apperrors implements the ingestion platform's error taxonomy:
// validation, parser, database, security and not-found errors, each
// carrying a structured context map so callers don't have to parse
// message strings to decide retry-vs-DLQ behavior.
package apperrors

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ValidationErrorType marks bad input; never retried.
	ValidationErrorType ErrorType = "validation"
	// ParserErrorType marks an unreachable or malformed source; retried up to max_retries.
	ParserErrorType ErrorType = "parser"
	// DatabaseErrorType marks transient connectivity issues; retried.
	DatabaseErrorType ErrorType = "database"
	// SecurityErrorType marks path-traversal or unauthorized access; fatal, never retried.
	SecurityErrorType ErrorType = "security"
	// NotFoundErrorType marks a missing queue, review or job entity.
	NotFoundErrorType ErrorType = "not_found"
	// InternalErrorType marks unclassified internal failures.
	InternalErrorType ErrorType = "internal"
)

// AppError represents an enhanced application error with rich context.
type AppError struct {
	Err       error                  `json:"-"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Type      ErrorType              `json:"type"`
	Stack     string                 `json:"stack,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error returns the error message.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the original error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCode sets the error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Wrap attaches the underlying cause to a typed error built by one of the
// constructors, so Unwrap/errors.Is can still reach it while IsRetryable
// keeps using this error's own Type.
func (e *AppError) Wrap(cause error) *AppError {
	e.Err = cause
	return e
}

// ToJSON returns the error as JSON.
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Is implements error comparison for Go 1.13+ error handling.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

func newTyped(t ErrorType, message string) *AppError {
	return &AppError{
		Type:      t,
		Message:   message,
		Stack:     getStack(),
		Timestamp: time.Now().UTC(),
		Context:   make(map[string]interface{}),
	}
}

// Validation constructs a ValidationError: bad input, not retried.
func Validation(message string) *AppError {
	return newTyped(ValidationErrorType, message)
}

// Parser constructs a ParserError: unreachable/malformed source, retried.
func Parser(message string) *AppError {
	return newTyped(ParserErrorType, message)
}

// Database constructs a DatabaseError: transient connectivity, retried.
func Database(message string) *AppError {
	return newTyped(DatabaseErrorType, message)
}

// Security constructs a SecurityError: fatal, never retried.
func Security(message string) *AppError {
	return newTyped(SecurityErrorType, message)
}

// NotFound constructs a NotFoundError: missing queue/review/job entity.
func NotFound(message string) *AppError {
	return newTyped(NotFoundErrorType, message)
}

// Wrap wraps an arbitrary error, preserving its type if it is already an *AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Err:       appErr.Err,
			Message:   fmt.Sprintf("%s: %s", message, appErr.Message),
			Code:      appErr.Code,
			Type:      appErr.Type,
			Stack:     appErr.Stack,
			Context:   appErr.Context,
			Timestamp: appErr.Timestamp,
		}
	}

	return &AppError{
		Err:       err,
		Message:   message,
		Type:      InternalErrorType,
		Stack:     getStack(),
		Timestamp: time.Now().UTC(),
	}
}

// getStack returns the call stack, skipping this package's own frames.
func getStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "apperrors/errors.go") {
			stack.WriteString(fmt.Sprintf("%s:%d %s\n", filepath.Base(frame.File), frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return stack.String()
}

// IsTimeout checks if the error is a timeout error.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "context deadline exceeded")
}

// IsRetryable reports whether a worker should retry the task that produced err,
// as opposed to moving it straight to the dead-letter queue.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if appErr, ok := err.(*AppError); ok {
		switch appErr.Type {
		case ValidationErrorType, SecurityErrorType:
			return false
		case ParserErrorType, DatabaseErrorType:
			return true
		default:
			return IsTimeout(err)
		}
	}

	if IsTimeout(err) {
		return true
	}

	if t, ok := err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}

	return false
}
