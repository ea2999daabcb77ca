package pty

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusStarting, StatusRunning, true},
		{StatusStarting, StatusError, true},
		{StatusRunning, StatusClosing, true},
		{StatusRunning, StatusClosed, true},
		{StatusRunning, StatusError, true},
		{StatusClosing, StatusClosed, true},
		{StatusClosing, StatusError, false},
		{StatusRunning, StatusStarting, false},
		{StatusClosed, StatusRunning, false},
		{StatusClosed, StatusError, false},
		{StatusError, StatusClosed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(CodeSessionNotFound, "abc", nil))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("expected errors.Is to match ErrSessionNotFound")
	}
	if errors.Is(err, ErrWriteFailed) {
		t.Fatal("did not expect match on ErrWriteFailed")
	}
	if got := newError(CodeSessionNotFound, "abc", nil).Error(); got != "session not found: abc" {
		t.Fatalf("Error() = %q", got)
	}
}
