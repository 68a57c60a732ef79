package ledger

import (
	"errors"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{name: "client error should not retry", errorClass: ErrorClassClient, expected: false},
		{name: "server error should retry", errorClass: ErrorClassServer, expected: true},
		{name: "network error should retry", errorClass: ErrorClassNetwork, expected: true},
		{name: "empty error class should not retry", errorClass: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{200, ""},
		{400, ErrorClassClient},
		{409, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if result := classifyStatus(tt.status); result != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, result, tt.expected)
		}
	}
}

func TestLedgerError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *LedgerError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &LedgerError{
				Operation:  "read",
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "ledger read network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &LedgerError{
				Operation:  "submit",
				StatusCode: 409,
				ErrorClass: ErrorClassClient,
				Message:    "asset already exists",
			},
			expected: "ledger submit client error (status 409): asset already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.err.Error(); result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestLedgerError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &LedgerError{Operation: "read", ErrorClass: ErrorClassNetwork, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var target *LedgerError
	if !errors.As(error(err), &target) || target.Operation != "read" {
		t.Error("errors.As should extract the LedgerError")
	}
}
