package app

import (
	"testing"
	"time"
)

func TestRetryPolicyBackoffGrows(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 7 * time.Second},
		{2, 14 * time.Second},
		{3, 28 * time.Second},
	}
	for _, tc := range tests {
		if got := p.Backoff(tc.retry); got != tc.want {
			t.Fatalf("Backoff(%d) = %s, want %s", tc.retry, got, tc.want)
		}
	}
}

func TestRetryPolicyNextDelayBoundedByBackoff(t *testing.T) {
	p := DefaultRetryPolicy()

	for retry := 1; retry <= p.MaxAttempts; retry++ {
		ceiling := p.Backoff(retry)
		for i := 0; i < 100; i++ {
			d := p.NextDelay(retry)
			if d < 0 || d > ceiling {
				t.Fatalf("NextDelay(%d) = %s, outside [0, %s]", retry, d, ceiling)
			}
		}
	}
}

func TestRetryPolicyNextDelayIsJittered(t *testing.T) {
	p := DefaultRetryPolicy()

	first := p.NextDelay(3)
	for i := 0; i < 50; i++ {
		if p.NextDelay(3) != first {
			return
		}
	}
	t.Fatal("expected jitter to vary the delay across repeated draws")
}
