package orders

import (
	"testing"

	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

func TestNumberAllocatorNext(t *testing.T) {
	t.Parallel()

	a := newNumberAllocator("ORD-", 6, 5)

	first, err := a.next("")
	if err != nil {
		t.Fatalf("next from empty: %v", err)
	}
	if first != "ORD-000001" {
		t.Fatalf("expected ORD-000001, got %s", first)
	}

	next, err := a.next("ORD-000009")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "ORD-000010" {
		t.Fatalf("expected ORD-000010, got %s", next)
	}
}

func TestNumberAllocatorOutgrowsPadding(t *testing.T) {
	t.Parallel()

	a := newNumberAllocator("ORD-", 6, 5)
	next, err := a.next("ORD-999999")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "ORD-1000000" {
		t.Fatalf("expected ORD-1000000, got %s", next)
	}

	next, err = a.next("ORD-1000000")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "ORD-1000001" {
		t.Fatalf("expected ORD-1000001, got %s", next)
	}
}

func TestNumberAllocatorMalformed(t *testing.T) {
	t.Parallel()

	a := newNumberAllocator("ORD-", 6, 5)
	_, err := a.next("PED-000001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR on malformed number, got %v", err)
	}
}

func TestNumberAllocatorDefaults(t *testing.T) {
	t.Parallel()

	a := newNumberAllocator("", 0, 0)
	if a.prefix != "ORD-" || a.width != 6 || a.maxAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", a)
	}
}
