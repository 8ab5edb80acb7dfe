package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorRoundTrip(t *testing.T) {
	cause := stdErrors.New("row locked")
	err := Wrap(CodeInsufficientStock, cause, "reserve 4 units").
		WithDetails(map[string]any{"available": 2})

	if err.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause to be preserved in the chain")
	}

	wrapped := fmt.Errorf("create order: %w", err)
	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error through wrapping")
	}
	if typed.Details() == nil {
		t.Fatal("expected details to survive wrapping")
	}
	if !HasCode(wrapped, CodeInsufficientStock) {
		t.Fatal("HasCode should match through the chain")
	}
	if HasCode(wrapped, CodeQuotaExceeded) {
		t.Fatal("HasCode matched the wrong code")
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeInsufficientStock, http.StatusConflict, false},
		{CodeQuotaExceeded, http.StatusForbidden, false},
		{CodeTransactionFailed, http.StatusConflict, true},
		{CodeOrderNumberExhausted, http.StatusConflict, true},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError, true},
	}
	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: expected retryable=%v", tc.code, tc.retryable)
		}
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("conn refused"), "persist order")
	d := Dump(fmt.Errorf("outer: %w", err))
	if d.Code != CodeDependency {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}
