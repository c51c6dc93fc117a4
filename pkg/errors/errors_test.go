package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		errorType   ErrorType
		message     string
		wantMessage string
	}{
		{
			name:        "rate limit error",
			errorType:   ErrorTypeRateLimit,
			message:     "too many requests",
			wantMessage: "too many requests",
		},
		{
			name:        "unavailable error",
			errorType:   ErrorTypeUnavailable,
			message:     "service unavailable",
			wantMessage: "service unavailable",
		},
		{
			name:        "timeout error",
			errorType:   ErrorTypeTimeout,
			message:     "request timeout",
			wantMessage: "request timeout",
		},
		{
			name:        "bad request error",
			errorType:   ErrorTypeBadRequest,
			message:     "invalid input",
			wantMessage: "invalid input",
		},
		{
			name:        "internal error",
			errorType:   ErrorTypeInternal,
			message:     "internal server error",
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.errorType, tt.message)
			
			if err.Type != tt.errorType {
				t.Errorf("NewError() type = %v, want %v", err.Type, tt.errorType)
			}
			
			if err.Message != tt.wantMessage {
				t.Errorf("NewError() message = %v, want %v", err.Message, tt.wantMessage)
			}
			
			if err.Details == nil {
				t.Error("NewError() details should be initialized")
			}
		})
	}
}

func TestErrorWithDetails(t *testing.T) {
	err := NewError(ErrorTypeRateLimit, "rate limit exceeded").
		WithDetail("prefix", "api:login").
		WithDetail("identifier", "10.0.0.1")

	if err.Details["prefix"] != "api:login" {
		t.Errorf("WithDetail() prefix = %v, want api:login", err.Details["prefix"])
	}

	if err.Details["identifier"] != "10.0.0.1" {
		t.Errorf("WithDetail() identifier = %v, want 10.0.0.1", err.Details["identifier"])
	}

	// Test chaining
	err.WithDetail("limit", 5).WithDetail("remaining", 0)
	
	if len(err.Details) != 4 {
		t.Errorf("Expected 4 details, got %d", len(err.Details))
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewError(ErrorTypeUnavailable, "redis unavailable").
		WithCause(cause)

	if err.Cause != cause {
		t.Errorf("WithCause() cause = %v, want %v", err.Cause, cause)
	}

	// Test Error() includes cause
	errorStr := err.Error()
	if !strings.Contains(errorStr, "connection refused") {
		t.Errorf("Error() should include cause, got: %v", errorStr)
	}
}


func TestErrorString(t *testing.T) {
	err1 := NewError(ErrorTypeUnauthorized, "unauthorized cron request")
	if got, want := err1.Error(), "unauthorized: unauthorized cron request"; got != want {
		t.Errorf("Error() = %v, want '%s'", got, want)
	}

	// Details are not part of the message
	err2 := NewError(ErrorTypeForbidden, "csrf validation failed").
		WithDetail("path", "/admin/ratelimit/reset")
	if got, want := err2.Error(), "forbidden: csrf validation failed"; got != want {
		t.Errorf("Error() = %v, want '%s'", got, want)
	}

	err3 := NewError(ErrorTypeIntegrity, "decrypt credential").
		WithCause(fmt.Errorf("message authentication failed"))
	if got, want := err3.Error(), "integrity: decrypt credential: message authentication failed"; got != want {
		t.Errorf("Error() = %v, want '%s'", got, want)
	}
}

func TestErrorIsThroughCause(t *testing.T) {
	sentinel := New("token malformed")
	err := NewError(ErrorTypeIntegrity, "decrypt credential").WithCause(sentinel)

	if !Is(err, sentinel) {
		t.Error("expected sentinel to be found in cause chain")
	}
	if !Is(err, NewError(ErrorTypeIntegrity, "other")) {
		t.Error("expected errors of the same type to match")
	}
	if Is(err, NewError(ErrorTypeConfiguration, "other")) {
		t.Error("expected errors of different types not to match")
	}

	var typed *Error
	if !As(Wrap(err, "open"), &typed) || typed.Type != ErrorTypeIntegrity {
		t.Errorf("As() did not recover the typed error, got %v", typed)
	}
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    int
	}{
		{ErrorTypeBadRequest, 400},
		{ErrorTypeUnauthorized, 401},
		{ErrorTypeForbidden, 403},
		{ErrorTypeConflict, 409},
		{ErrorTypeIntegrity, 422},
		{ErrorTypeRateLimit, 429},
		{ErrorTypeUnavailable, 503},
		{ErrorTypeConfiguration, 500},
		{ErrorTypeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			if got := NewError(tt.errType, "x").HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}

	if got := StatusCode(New("plain")); got != 500 {
		t.Errorf("StatusCode(plain) = %d, want 500", got)
	}
	if got := StatusCode(Wrap(NewError(ErrorTypeConflict, "replay"), "cron")); got != 409 {
		t.Errorf("StatusCode(wrapped conflict) = %d, want 409", got)
	}
}

func TestErrorNilHandling(t *testing.T) {
	// Test WithDetail with nil value
	err := NewError(ErrorTypeBadRequest, "test").
		WithDetail("key", nil)
	
	if err.Details["key"] != nil {
		t.Errorf("WithDetail() should accept nil value")
	}

	// Test WithCause with nil
	err2 := NewError(ErrorTypeBadRequest, "test").
		WithCause(nil)
	
	if err2.Cause != nil {
		t.Errorf("WithCause() should accept nil")
	}
	
	// Error string should not include nil cause
	if strings.Contains(err2.Error(), "caused by") {
		t.Errorf("Error() should not include nil cause")
	}
}

func TestErrorTypeValidation(t *testing.T) {
	// Test with empty error type
	err := NewError("", "test message")
	if err.Type != "" {
		t.Errorf("Empty error type should be preserved")
	}
}