package mfsstore

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNotFound", ErrNotFound, "object not found"},
		{"ErrInvalidData", ErrInvalidData, "invalid data format"},
		{"ErrInvalidConfig", ErrInvalidConfig, "invalid configuration"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized access"},
		{"ErrNotLoaded", ErrNotLoaded, "store is not loaded"},
		{"ErrDropped", ErrDropped, "store has been dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("error message = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	baseErr := errors.New("base error")
	ctx := map[string]interface{}{
		"key":   "users/123",
		"value": 42,
	}

	err := WithContext(baseErr, ctx)

	var errWithCtx *ErrorWithContext
	if !errors.As(err, &errWithCtx) {
		t.Fatalf("expected ErrorWithContext, got %T", err)
	}

	if !errors.Is(err, baseErr) {
		t.Error("expected error to wrap base error")
	}

	if errWithCtx.Context["key"] != "users/123" {
		t.Errorf("context key = %v, want 'users/123'", errWithCtx.Context["key"])
	}
	if errWithCtx.Context["value"] != 42 {
		t.Errorf("context value = %v, want 42", errWithCtx.Context["value"])
	}

	if WithContext(nil, ctx) != nil {
		t.Error("WithContext(nil) should return nil")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", WithContext(ErrNotFound, nil), true},
		{"other error", errors.New("other"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMalformedKeepsParseError(t *testing.T) {
	var doc Document
	parseErr := json.Unmarshal([]byte("{not json"), &doc)
	if parseErr == nil {
		t.Fatal("expected a parse error")
	}

	err := malformed("db/1.json", parseErr)

	if !IsMalformed(err) {
		t.Error("expected ErrInvalidData in chain")
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("expected *json.SyntaxError in chain, got %v", err)
	}
	if !IsPermanent(err) {
		t.Error("malformed data should be permanent")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrBackendUnavailable", ErrBackendUnavailable, true},
		{"wrapped ErrBackendUnavailable", WithContext(ErrBackendUnavailable, nil), true},
		{"ErrNotFound", ErrNotFound, false},
		{"ErrInvalidConfig", ErrInvalidConfig, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
