package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detailed := base.WithDetails(map[string]any{"field": "foo"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if base.Details() != nil {
		t.Fatalf("WithDetails must not mutate the receiver")
	}
	if !stdErrors.Is(detailed, base) {
		t.Fatalf("detailed copy should still match its sentinel")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesCodeAndMessage(t *testing.T) {
	sentinel := New(CodeValidation, "invalid coupon")
	wrapped := Wrap(CodeValidation, stdErrors.New("lookup"), "invalid coupon")

	if !stdErrors.Is(wrapped, sentinel) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if stdErrors.Is(New(CodeValidation, "other"), sentinel) {
		t.Fatalf("different messages should not match")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	wrapped := fmt.Errorf("load local cart: %w", Wrap(CodeDependency, stdErrors.New("redis down"), "local cart store unavailable"))
	if CodeOf(wrapped) != CodeDependency {
		t.Fatalf("expected dependency code, got %q", CodeOf(wrapped))
	}
	if !IsCode(wrapped, CodeDependency) || IsCode(wrapped, CodeValidation) {
		t.Fatalf("IsCode mismatch")
	}
	if CodeOf(stdErrors.New("plain")) != "" || IsCode(stdErrors.New("plain"), "") {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := New(CodeValidation, "invalid coupon code").PublicMessage(); got != "invalid coupon code" {
		t.Fatalf("validation message should be exposed, got %q", got)
	}
	if got := New(CodeValidation, "").PublicMessage(); got != "validation failed" {
		t.Fatalf("empty message should fall back, got %q", got)
	}
	if got := Wrap(CodeDependency, stdErrors.New("redis: dial tcp"), "persist cart").PublicMessage(); got != "dependency unavailable" {
		t.Fatalf("dependency message should be hidden, got %q", got)
	}
	var nilErr *Error
	if got := nilErr.PublicMessage(); got != "internal server error" {
		t.Fatalf("nil error should map to internal, got %q", got)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "remote cart store unavailable")
	want := "DEPENDENCY_ERROR: remote cart store unavailable: connection refused"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
	if MetadataFor(CodeDependency).RetryAfter <= 0 {
		t.Fatalf("dependency errors should advertise a retry delay")
	}
}
