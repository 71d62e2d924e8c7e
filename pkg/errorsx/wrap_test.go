package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(errors.New("boom"), ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("reason = %s", Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatal("expected HasReason true")
	}
}

func TestWrapKeepsFirstReason(t *testing.T) {
	inner := Wrap(errors.New("boom"), ReasonToolFailed)
	outer := Wrap(fmt.Errorf("context: %w", inner), ReasonLLMGenerate)
	if Reason(outer) != ReasonToolFailed {
		t.Fatalf("reason = %s, want %s", Reason(outer), ReasonToolFailed)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonToolFailed) != nil {
		t.Fatal("expected nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatal("expected unknown reason for nil error")
	}
}
