package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: exponential growth capped at Max, with
// equal jitter so the delay for attempt n lies in [ceil(n)/2, ceil(n)].
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64

	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2}
}

// Ceiling is the un-jittered delay for the given attempt (1-based).
func (b Backoff) Ceiling(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base, max, factor := b.Base, b.Max, b.Factor
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if factor < 1 {
		factor = 1
	}
	d := float64(base) * math.Pow(factor, float64(attempt-1))
	if d > float64(max) || math.IsInf(d, 0) {
		return max
	}
	return time.Duration(d)
}

// Next returns the jittered delay for attempt.
func (b Backoff) Next(attempt int) time.Duration {
	c := b.Ceiling(attempt)
	r := b.Rand
	if r == nil {
		r = rand.Float64
	}
	half := c / 2
	return half + time.Duration(r()*float64(c-half))
}
