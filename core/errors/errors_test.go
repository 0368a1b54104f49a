package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapfPreservesIdentity(t *testing.T) {
	sentinel := New("escrow", 6002, KindState, "invalid escrow state for this operation")
	err := Wrapf(sentinel, "status %s", "Created")
	if !stderrors.Is(err, sentinel) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if got := KindOf(err); got != KindState {
		t.Fatalf("expected state kind, got %s", got)
	}
	if got := CodeOf(err); got != 6002 {
		t.Fatalf("expected code 6002, got %d", got)
	}
	if err.Error() != "escrow: invalid escrow state for this operation: status Created" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKindOfUncodedIsInternal(t *testing.T) {
	err := fmt.Errorf("disk: %w", stderrors.New("boom"))
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal kind")
	}
	if CodeOf(err) != 0 {
		t.Fatalf("expected zero code")
	}
	if _, ok := As(nil); ok {
		t.Fatalf("nil error must not classify")
	}
}
