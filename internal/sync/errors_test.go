package sync

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("%w: disk full", ErrStoreWriteFailed)
	if !IsRetryable(wrapped) {
		t.Error("store write failures should be retryable")
	}

	if IsRetryable(ErrSourceUnreadable) {
		t.Error("unreadable sources are not retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil error is not retryable")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{fmt.Errorf("%w: corrupt header", ErrSourceUnreadable), true},
		{fmt.Errorf("%w: cannot open db", ErrStoreUnavailable), true},
		{fmt.Errorf("%w: busy", ErrStoreWriteFailed), false},
		{ErrEnrichmentFailed, false},
		{errors.New("unrelated"), false},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
}
