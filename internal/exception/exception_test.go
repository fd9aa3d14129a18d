package exception

import (
	"reflect"
	"strings"
	"testing"
)

// TestExceptionCreation tests basic exception creation
func TestExceptionCreation(t *testing.T) {
	exception := &Exception{
		Kind:     ExceptionPanic,
		Message:  "Test panic",
		Location: "test.go:10",
	}

	if exception.Kind != ExceptionPanic {
		t.Errorf("Expected ExceptionPanic, got %v", exception.Kind)
	}

	if exception.Message != "Test panic" {
		t.Errorf("Expected 'Test panic', got %s", exception.Message)
	}

	if exception.Location != "test.go:10" {
		t.Errorf("Expected 'test.go:10', got %s", exception.Location)
	}
}

// TestAbortHandler tests the abort handler formatting
func TestAbortHandler(t *testing.T) {
	handler := &AbortHandler{
		ShowStackTrace: false,
		LogToFile:      false,
	}

	exception := &Exception{
		Kind:     ExceptionBoundsCheck,
		Message:  "Index out of bounds",
		Location: "array.go:25",
	}

	formatted := handler.formatException(exception)
	expected := "[BOUNDS_CHECK] Index out of bounds at array.go:25"

	if formatted != expected {
		t.Errorf("Expected '%s', got '%s'", expected, formatted)
	}
}

// TestNestedExceptions tests nested exception handling
func TestNestedExceptions(t *testing.T) {
	handler := &AbortHandler{
		ShowStackTrace: false,
		LogToFile:      false,
	}

	innerException := &Exception{
		Kind:     ExceptionDivisionByZero,
		Message:  "Division by zero",
		Location: "math.go:15",
	}

	outerException := &Exception{
		Kind:           ExceptionUser,
		Message:        "Calculation failed",
		Location:       "calc.go:42",
		InnerException: innerException,
	}

	formatted := handler.formatException(outerException)

	if !strings.Contains(formatted, "Calculation failed") {
		t.Error("Expected outer exception message")
	}

	if !strings.Contains(formatted, "Caused by:") {
		t.Error("Expected nested exception indicator")
	}

	if !strings.Contains(formatted, "Division by zero") {
		t.Error("Expected inner exception message")
	}
}

// TestExceptionKindToString tests exception kind string conversion
func TestExceptionKindToString(t *testing.T) {
	handler := &AbortHandler{}

	testCases := []struct {
		kind     ExceptionKind
		expected string
	}{
		{ExceptionPanic, "PANIC"},
		{ExceptionAssert, "ASSERTION_FAILED"},
		{ExceptionBoundsCheck, "BOUNDS_CHECK"},
		{ExceptionNullPointer, "NULL_POINTER"},
		{ExceptionDivisionByZero, "DIVISION_BY_ZERO"},
		{ExceptionStackOverflow, "STACK_OVERFLOW"},
		{ExceptionOutOfMemory, "OUT_OF_MEMORY"},
		{ExceptionUser, "USER_EXCEPTION"},
	}

	for _, tc := range testCases {
		result := handler.kindToString(tc.kind)
		if result != tc.expected {
			t.Errorf("Expected %s for %v, got %s", tc.expected, tc.kind, result)
		}
	}
}

// TestSetExceptionHandler tests setting the global top-level handler
func TestSetExceptionHandler(t *testing.T) {
	originalHandler := currentHandler
	defer func() {
		currentHandler = originalHandler
	}()

	newHandler := &AbortHandler{
		ShowStackTrace: false,
		LogToFile:      true,
		LogFile:        "test.log",
	}

	SetExceptionHandler(newHandler)

	if currentHandler != newHandler {
		t.Error("Expected handler to be set")
	}
}

// TestAssert tests assertion functionality
func TestAssert(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("Assert should not panic on true condition")
		}
	}()

	Assert(true, "This should pass")
}

// TestAssertFailurePanics verifies a failing assertion raises a recoverable Exception.
func TestAssertFailurePanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected Assert(false, ...) to panic")
		}

		e := RecoverException(r)
		if e.Kind != ExceptionAssert {
			t.Errorf("Expected ExceptionAssert, got %v", e.Kind)
		}
	}()

	Assert(false, "should fail")
}

// TestBoundsChecking tests bounds checking functionality
func TestBoundsChecking(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("CheckBounds should not panic on valid bounds")
		}
	}()

	CheckBounds(5, 10, "testArray")
}

// TestBoundsCheckingOutOfRange verifies an out-of-range access raises ExceptionBoundsCheck.
func TestBoundsCheckingOutOfRange(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected CheckBounds to panic")
		}

		e := RecoverException(r)
		if e.Kind != ExceptionBoundsCheck {
			t.Errorf("Expected ExceptionBoundsCheck, got %v", e.Kind)
		}
	}()

	CheckBounds(10, 10, "testArray")
}

// TestNullPointerCheck tests null pointer checking
func TestNullPointerCheck(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("CheckNullPointer should not panic on non-null pointer")
		}
	}()

	value := 42
	CheckNullPointer(&value, "testPointer")
}

// TestDivisionByZeroCheck tests division by zero checking
func TestDivisionByZeroCheck(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("CheckDivisionByZero should not panic on non-zero divisor")
		}
	}()

	CheckDivisionByZero(5, "test division")
	CheckDivisionByZero(5.5, "test float division")
}

// TestStackTraceCapture tests stack trace capturing
func TestStackTraceCapture(t *testing.T) {
	stackTrace := captureStackTrace()

	if len(stackTrace) == 0 {
		t.Error("Expected non-empty stack trace")
	}

	for i, frame := range stackTrace {
		if frame.Function == "" {
			t.Errorf("Frame %d has empty function name", i)
		}

		if frame.File == "" {
			t.Errorf("Frame %d has empty file name", i)
		}

		if frame.Line <= 0 {
			t.Errorf("Frame %d has invalid line number: %d", i, frame.Line)
		}
	}
}

// TestCallerLocation tests caller location functionality
func TestCallerLocation(t *testing.T) {
	location := getCallerLocation()

	if location == "unknown" {
		t.Error("Expected valid caller location")
	}

	if !strings.Contains(location, ":") {
		t.Error("Expected location to contain line number")
	}

	if !strings.Contains(location, ".go") {
		t.Error("Expected location to contain Go file")
	}
}

// MockHandler for testing exception handling without aborting
type MockHandler struct {
	LastException *Exception
	HandleCount   int
}

func (mh *MockHandler) HandleException(exception *Exception) bool {
	mh.LastException = exception
	mh.HandleCount++
	return true // Don't actually abort
}

// TestCustomExceptionHandler tests custom top-level exception handling
func TestCustomExceptionHandler(t *testing.T) {
	originalHandler := currentHandler
	defer func() {
		currentHandler = originalHandler
	}()

	mockHandler := &MockHandler{}
	SetExceptionHandler(mockHandler)

	testException := &Exception{
		Kind:     ExceptionUser,
		Message:  "Test exception",
		Location: "test.go:1",
	}

	HandleTopLevel(testException)

	if mockHandler.HandleCount != 1 {
		t.Errorf("Expected 1 handled exception, got %d", mockHandler.HandleCount)
	}

	if mockHandler.LastException != testException {
		t.Error("Expected last exception to match test exception")
	}
}

// TestThrowUserExceptionCarriesPayload verifies the payload's type is
// preserved for later catch-by-type dispatch.
func TestThrowUserExceptionCarriesPayload(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected ThrowUserException to panic")
		}

		e := RecoverException(r)
		if e.Kind != ExceptionUser {
			t.Errorf("Expected ExceptionUser, got %v", e.Kind)
		}

		if !e.MatchesCatchType(reflect.TypeOf("")) {
			t.Error("Expected payload to match a string catch type")
		}

		if e.MatchesCatchType(reflect.TypeOf(0)) {
			t.Error("Expected payload not to match an int catch type")
		}
	}()

	ThrowUserException("boom", "payload-string", nil)
}

// TestMatchesCatchTypeNilCatchesAll verifies a nil declared catch type
// (bare "catch" with no type filter) matches any payload.
func TestMatchesCatchTypeNilCatchesAll(t *testing.T) {
	e := &Exception{Kind: ExceptionUser, PayloadType: reflect.TypeOf(0), Payload: 42}
	if !e.MatchesCatchType(nil) {
		t.Error("Expected a nil catch type to match any exception")
	}
}

// TestRecoverExceptionWrapsForeignPanic verifies a plain Go panic value
// (e.g. from a host-called function) is wrapped, not dropped.
func TestRecoverExceptionWrapsForeignPanic(t *testing.T) {
	e := RecoverException("some unrelated go panic")
	if e.Kind != ExceptionPanic {
		t.Errorf("Expected ExceptionPanic for a foreign panic, got %v", e.Kind)
	}

	if !strings.Contains(e.Message, "unrelated go panic") {
		t.Errorf("Expected message to retain the original panic value, got %q", e.Message)
	}
}
