// Package exception provides the runtime exception representation raised by
// compiled lambda bodies (the Throw instruction of internal/ilasm) and a
// top-level abort strategy (HandleTopLevel) a host can apply to an
// exception that escapes a lambda's invocation uncaught.
package exception

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
)

// ExceptionKind represents different types of runtime exceptions a
// compiled lambda body can raise.
type ExceptionKind int

const (
	ExceptionPanic ExceptionKind = iota
	ExceptionAssert
	ExceptionBoundsCheck
	ExceptionNullPointer
	ExceptionDivisionByZero
	ExceptionStackOverflow
	ExceptionOverflow // a checked arithmetic node's result overflowed its type
	ExceptionOutOfMemory
	ExceptionUser // raised by a compiled Throw node with a user payload
)

// Exception represents a runtime exception propagating out of compiled
// (or interpreted) lambda code. PayloadType/Payload carry the value a
// Throw node raised so a Catch region can dispatch on its declared type,
// the same way spec.md's Try/Catch/Finally/Fault/Filter nodes require.
type Exception struct {
	Kind           ExceptionKind
	Message        string
	Location       string       // Source location where exception occurred
	StackTrace     []StackFrame // Stack trace at exception point
	InnerException *Exception   // Nested exception (if any)
	PayloadType    reflect.Type // declared type of Payload, nil for internal faults
	Payload        interface{}  // the thrown value, for catch-by-type dispatch
}

// MatchesCatchType reports whether this exception's payload is assignable
// to a Catch clause declared to handle catchType.
func (e *Exception) MatchesCatchType(catchType reflect.Type) bool {
	if catchType == nil {
		return true // a Catch with no declared type catches everything
	}

	if e.PayloadType == nil {
		return false
	}

	return e.PayloadType == catchType || e.PayloadType.AssignableTo(catchType)
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string  // Function name
	File     string  // Source file
	Line     int     // Line number
	PC       uintptr // Program counter
}

// ExceptionHandler defines the interface for handling exceptions
type ExceptionHandler interface {
	HandleException(exception *Exception) bool // Returns true if handled
}

// AbortHandler implements the abort strategy for exception handling
type AbortHandler struct {
	ShowStackTrace bool
	LogToFile      bool
	LogFile        string
}

// HandleException implements the abort strategy
func (ah *AbortHandler) HandleException(exception *Exception) bool {
	fmt.Fprintf(os.Stderr, "FATAL: %s\n", ah.formatException(exception))

	if ah.ShowStackTrace && len(exception.StackTrace) > 0 {
		fmt.Fprintf(os.Stderr, "\nStack trace:\n")
		for i, frame := range exception.StackTrace {
			fmt.Fprintf(os.Stderr, "  %d: %s at %s:%d\n", i, frame.Function, frame.File, frame.Line)
		}
	}

	if ah.LogToFile && ah.LogFile != "" {
		ah.logToFile(exception)
	}

	// Abort strategy: immediately terminate
	os.Exit(1)
	return true // Never reached, but satisfies interface
}

// formatException creates a human-readable exception message
func (ah *AbortHandler) formatException(exception *Exception) string {
	var b strings.Builder

	// Exception kind and message
	b.WriteString(fmt.Sprintf("[%s] %s", ah.kindToString(exception.Kind), exception.Message))

	// Location information
	if exception.Location != "" {
		b.WriteString(fmt.Sprintf(" at %s", exception.Location))
	}

	// Nested exception
	if exception.InnerException != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %s", ah.formatException(exception.InnerException)))
	}

	return b.String()
}

// kindToString converts exception kind to string
func (ah *AbortHandler) kindToString(kind ExceptionKind) string {
	switch kind {
	case ExceptionPanic:
		return "PANIC"
	case ExceptionAssert:
		return "ASSERTION_FAILED"
	case ExceptionBoundsCheck:
		return "BOUNDS_CHECK"
	case ExceptionNullPointer:
		return "NULL_POINTER"
	case ExceptionDivisionByZero:
		return "DIVISION_BY_ZERO"
	case ExceptionStackOverflow:
		return "STACK_OVERFLOW"
	case ExceptionOverflow:
		return "ARITHMETIC_OVERFLOW"
	case ExceptionOutOfMemory:
		return "OUT_OF_MEMORY"
	case ExceptionUser:
		return "USER_EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// logToFile logs the exception to a file
func (ah *AbortHandler) logToFile(exception *Exception) {
	file, err := os.OpenFile(ah.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	defer file.Close()

	fmt.Fprintf(file, "[%s] %s\n", getCurrentTimestamp(), ah.formatException(exception))
}

// Runtime exception handling.
//
// Panic/Assert/CheckBounds/CheckNullPointer/CheckDivisionByZero/
// ThrowUserException all raise via a Go panic (AsGoPanic), never by calling
// the top-level handler directly: a raise inside a compiled Try region must
// be recoverable by internal/ilvm's region executor. HandleTopLevel passes an
// exception to currentHandler; nothing in internal/compiler, internal/ilvm
// or cmd/exprc calls it, so an exception escaping the outermost compiled
// call reaches the host as a Go panic.

var (
	currentHandler ExceptionHandler = &AbortHandler{
		ShowStackTrace: true,
		LogToFile:      false,
	}
)

// SetExceptionHandler sets the global top-level exception handler.
func SetExceptionHandler(handler ExceptionHandler) {
	currentHandler = handler
}

// HandleTopLevel reports an exception that propagated past every compiled
// Try region, using the configured top-level handler.
func HandleTopLevel(e *Exception) bool {
	return currentHandler.HandleException(e)
}

// Panic raises a panic exception with the given message
func Panic(message string) {
	AsGoPanic(&Exception{
		Kind:       ExceptionPanic,
		Message:    message,
		Location:   getCallerLocation(),
		StackTrace: captureStackTrace(),
	})
}

// Assert checks a condition and panics if it's false
func Assert(condition bool, message string) {
	if !condition {
		AsGoPanic(&Exception{
			Kind:       ExceptionAssert,
			Message:    message,
			Location:   getCallerLocation(),
			StackTrace: captureStackTrace(),
		})
	}
}

// CheckBounds performs bounds checking and panics on violation
func CheckBounds(index, length int, arrayName string) {
	if index < 0 || index >= length {
		AsGoPanic(&Exception{
			Kind:       ExceptionBoundsCheck,
			Message:    fmt.Sprintf("Index %d out of bounds for %s[%d]", index, arrayName, length),
			Location:   getCallerLocation(),
			StackTrace: captureStackTrace(),
		})
	}
}

// CheckNullPointer checks for null pointer and panics if null
func CheckNullPointer(ptr interface{}, name string) {
	if ptr == nil {
		AsGoPanic(&Exception{
			Kind:       ExceptionNullPointer,
			Message:    fmt.Sprintf("Null pointer access: %s", name),
			Location:   getCallerLocation(),
			StackTrace: captureStackTrace(),
		})
	}
}

// CheckDivisionByZero checks for division by zero
func CheckDivisionByZero(divisor interface{}, operation string) {
	isZero := false

	switch v := divisor.(type) {
	case int:
		isZero = v == 0
	case int32:
		isZero = v == 0
	case int64:
		isZero = v == 0
	case float32:
		isZero = v == 0.0
	case float64:
		isZero = v == 0.0
	}

	if isZero {
		AsGoPanic(&Exception{
			Kind:       ExceptionDivisionByZero,
			Message:    fmt.Sprintf("Division by zero in %s", operation),
			Location:   getCallerLocation(),
			StackTrace: captureStackTrace(),
		})
	}
}

// RaiseOverflow raises an ExceptionOverflow for a checked arithmetic node
// whose result overflowed its operand type (spec.md §4.4).
func RaiseOverflow(operation string) {
	AsGoPanic(&Exception{
		Kind:       ExceptionOverflow,
		Message:    fmt.Sprintf("Arithmetic overflow in %s", operation),
		Location:   getCallerLocation(),
		StackTrace: captureStackTrace(),
	})
}

// ThrowUserException raises a user-defined exception carrying payload as
// the thrown value (for catch-by-type dispatch via MatchesCatchType).
func ThrowUserException(message string, payload interface{}, innerException *Exception) {
	var payloadType reflect.Type
	if payload != nil {
		payloadType = reflect.TypeOf(payload)
	}

	AsGoPanic(&Exception{
		Kind:           ExceptionUser,
		Message:        message,
		Location:       getCallerLocation(),
		StackTrace:     captureStackTrace(),
		InnerException: innerException,
		PayloadType:    payloadType,
		Payload:        payload,
	})
}

// Utility functions for stack tracing and location

// getCallerLocation returns the location of the caller
func getCallerLocation() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}

	// Extract just the filename, not the full path
	parts := strings.Split(file, "/")
	if len(parts) > 0 {
		file = parts[len(parts)-1]
	}

	return fmt.Sprintf("%s:%d", file, line)
}

// captureStackTrace captures the current stack trace
func captureStackTrace() []StackFrame {
	const maxFrames = 32
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs) // Skip 3 frames (Callers, captureStackTrace, exception func)

	frames := make([]StackFrame, 0, n)
	for i := 0; i < n; i++ {
		pc := pcs[i]
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		file, line := fn.FileLine(pc)

		// Extract just the function name
		name := fn.Name()
		if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
			name = name[lastDot+1:]
		}

		// Extract just the filename
		if lastSlash := strings.LastIndex(file, "/"); lastSlash >= 0 {
			file = file[lastSlash+1:]
		}

		frames = append(frames, StackFrame{
			Function: name,
			File:     file,
			Line:     line,
			PC:       pc,
		})
	}

	return frames
}

// getCurrentTimestamp returns current timestamp for logging
func getCurrentTimestamp() string {
	// Simple timestamp implementation for bootstrap
	return "TIMESTAMP"
}

// AsGoPanic wraps an Exception so it can be raised with Go's panic and
// recovered by internal/ilvm's Try-region executor (see RecoverException).
func AsGoPanic(e *Exception) { panic(e) }

// RecoverException converts a recovered Go panic value back into an
// *Exception, wrapping a foreign (non-compiler) panic as ExceptionPanic so
// Try regions can catch panics raised by host-called functions too.
func RecoverException(r interface{}) *Exception {
	if e, ok := r.(*Exception); ok {
		return e
	}

	return &Exception{
		Kind:       ExceptionPanic,
		Message:    fmt.Sprintf("%v", r),
		Location:   getCallerLocation(),
		StackTrace: captureStackTrace(),
	}
}
