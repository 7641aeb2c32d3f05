package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedError(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("lookup shipment-1: %w", Transient("tracking.lookup", base))

	if KindOf(err) != KindTransient {
		t.Fatalf("expected transient kind, got %q", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}
	if KindOf(base) != "" {
		t.Fatalf("plain errors should have no kind")
	}
}
