package mint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", base, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"fetch 503", &FetchError{URL: "u", StatusCode: 503, Temporary: true}, true},
		{"fetch 404", &FetchError{URL: "u", StatusCode: 404}, false},
		{"storage transient", &TransientStorageError{Backend: "arweave", Err: base}, true},
		{"storage permanent", &PermanentStorageError{Backend: "arweave", Err: base}, false},
		{"recipient", &InvalidRecipientError{Address: "x", Reason: "bad"}, false},
		{"chain transient", &TransientChainError{Op: "send", Err: base}, true},
		{"rejected", &RejectedTransactionError{Err: base}, false},
		{"already minted", &AlreadyMintedError{WinnerID: "w"}, false},
		{"wrapped transient", fmt.Errorf("upload image: %w", &TransientStorageError{Err: base}), true},
		{"ceiling over transient", &RetryCeilingExceededError{Step: "image", Attempts: 5, Last: &TransientChainError{Err: base}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDispositionOf(t *testing.T) {
	if d := DispositionOf(nil); d != DispositionNone {
		t.Errorf("nil disposition = %q", d)
	}
	ceiling := &RetryCeilingExceededError{Step: "mint", Attempts: 5, Last: context.DeadlineExceeded}
	if d := DispositionOf(ceiling); d != DispositionRetryLater {
		t.Errorf("ceiling disposition = %q, want retry_later", d)
	}
	if d := DispositionOf(&PermanentStorageError{Err: errors.New("402")}); d != DispositionOperatorAction {
		t.Errorf("permanent disposition = %q, want operator_action", d)
	}
	if !strings.HasPrefix(Describe(ceiling), "temporary failure") {
		t.Errorf("Describe(ceiling) = %q", Describe(ceiling))
	}
}

func TestErrorsUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := fmt.Errorf("step: %w", &RetryCeilingExceededError{Last: &TransientStorageError{Err: inner}})
	if !errors.Is(err, inner) {
		t.Error("errors.Is should reach the root cause")
	}
	var ts *TransientStorageError
	if !errors.As(err, &ts) {
		t.Error("errors.As should find TransientStorageError")
	}
}
