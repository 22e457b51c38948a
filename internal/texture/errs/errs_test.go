package errs

import (
	"errors"
	"testing"
)

func TestItemFailureUnwraps(t *testing.T) {
	inner := errors.New("boom")
	f := &ItemFailure{ItemID: "obs-1", Stage: "prep", Err: inner}

	if !errors.Is(f, inner) {
		t.Fatalf("expected errors.Is to find wrapped inner error")
	}
	if f.Error() == "" {
		t.Fatalf("expected non-empty message")
	}
}

func TestStoreErrorUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	e := &StoreError{ID: "abc123", Op: "save", Err: inner}

	if !errors.Is(e, inner) {
		t.Fatalf("expected errors.Is to find wrapped inner error")
	}
}

func TestConfigErrorMessage(t *testing.T) {
	e := NewConfigError("ObsSelectionStrategy", "unsupported value \"Bogus\"")
	if got := e.Error(); got == "" {
		t.Fatalf("expected non-empty message")
	}
}

func TestSolverNonConvergenceMessage(t *testing.T) {
	e := &SolverNonConvergence{Iterations: 10, Residual: 0.01, Epsilon: 1e-4}
	if got := e.Error(); got == "" {
		t.Fatalf("expected non-empty message")
	}
}
