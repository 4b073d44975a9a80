package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fleettrack/internal/repository"
)

func TestError_IsComparesByCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handler: %w", ErrVehicleAlreadyInUse)
	if !errors.Is(wrapped, ErrVehicleAlreadyInUse) {
		t.Error("expected wrapped error to match")
	}
	if errors.Is(wrapped, ErrVehicleInactive) {
		t.Error("different codes must not match")
	}

	withCause := ErrTransientStore.withCause(repository.ErrTransient)
	if !errors.Is(withCause, ErrTransientStore) {
		t.Error("copy with cause must keep its code")
	}
	if !errors.Is(withCause, repository.ErrTransient) {
		t.Error("cause must stay reachable")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   error
		want Kind
	}{
		{"transient", fmt.Errorf("%w: deadlock", repository.ErrTransient), KindTransient},
		{"unique conflict", repository.ErrActiveSessionConflict, KindTransient},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"invariant", fmt.Errorf("%w: two rows", repository.ErrInvariant), KindInvariant},
		{"business", ErrDuplicateTap, KindPreconditionFailed},
		{"unknown", errors.New("boom"), ""},
	}

	for _, tc := range testCases {
		if got := KindOf(classify(tc.in)); got != tc.want {
			t.Errorf("%s: kind = %q, want %q", tc.name, got, tc.want)
		}
	}

	if classify(nil) != nil {
		t.Error("classify(nil) must be nil")
	}
	if CodeOf(errors.New("boom")) != "INTERNAL" {
		t.Error("unclassified errors report INTERNAL")
	}
}
