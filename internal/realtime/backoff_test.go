package realtime

import (
	"testing"
	"time"
)

func TestCeilingGrowsUntilCap(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2}
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
	for i, w := range want {
		if got := b.Ceiling(i + 1); got != w*time.Second {
			t.Errorf("Ceiling(%d) = %s, want %s", i+1, got, w*time.Second)
		}
	}
	if got := b.Ceiling(500); got != 30*time.Second {
		t.Errorf("Ceiling(500) = %s, want cap", got)
	}
}

func TestNextStaysWithinJitterBand(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		r := r
		b := Backoff{Base: 100 * time.Millisecond, Max: time.Second, Factor: 2, Rand: func() float64 { return r }}
		for attempt := 1; attempt <= 10; attempt++ {
			c := b.Ceiling(attempt)
			got := b.Next(attempt)
			if got < c/2 || got > c {
				t.Errorf("r=%v attempt=%d: Next = %s outside [%s, %s]", r, attempt, got, c/2, c)
			}
		}
	}
}

func TestBackoffSanitizesBadInput(t *testing.T) {
	b := Backoff{Factor: 0.5}
	if got := b.Ceiling(0); got != time.Second {
		t.Errorf("Ceiling(0) = %s, want 1s", got)
	}
	if got := b.Ceiling(5); got != time.Second {
		t.Errorf("factor < 1 should not shrink: %s", got)
	}
}
