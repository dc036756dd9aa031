// Package errors provides structured error handling for mongoscan.
//
// Every failure that leaves the scan engine is an *Error carrying an
// ErrorType. Callers branch on the type with IsType, which walks the whole
// wrap chain, so a conversion failure raised inside a partition is still
// recognisable after the scanner wraps it as a scan failure:
//
//	tbl, err := scanner.Scan(ctx, req)
//	if errors.IsType(err, errors.ErrorTypeConversion) {
//	    // a document did not match the inferred schema
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents a malformed URI or an unreachable store
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSchemaInference represents an empty sample or a failed sample read
	ErrorTypeSchemaInference ErrorType = "schema_inference"
	// ErrorTypeConversion represents a value that does not fit its column type
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeScan represents a failed partition query
	ErrorTypeScan ErrorType = "scan"
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

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
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

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: captureStack(3)}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Stack: captureStack(3)}
}

// Wrap classifies err under errType. Wrapping an *Error keeps the stack of
// the innermost one, which points at the original failure. Wrap(nil) is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	wrapped := &Error{Type: errType, Message: message, Cause: err}
	if inner := innermost(err); inner != nil {
		wrapped.Stack = inner.Stack
	} else {
		wrapped.Stack = captureStack(3)
	}
	return wrapped
}

func innermost(err error) *Error {
	var found *Error
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		found = e
		err = e.Cause
	}
	return found
}

// IsRetryable reports whether err is a connection failure. Everything else
// is deterministic for a given collection and schema.
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeConnection)
}

// IsType reports whether any *Error in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for e := asError(err); e != nil; e = asError(e.Cause) {
		if e.Type == errType {
			return true
		}
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain, or the
// empty string if there is none.
func TypeOf(err error) ErrorType {
	if e := asError(err); e != nil {
		return e.Type
	}
	return ""
}

func asError(err error) *Error {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e
	}
	return nil
}

const maxFrames = 32

// captureStack records up to maxFrames callers, skipping the first skip
// frames (runtime.Callers counts itself as frame 0).
func captureStack(skip int) []StackFrame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		stack = append(stack, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return stack
}
